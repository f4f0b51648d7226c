package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"pocket-guard/internal/domain"
)

type memorySession struct {
	turns     []domain.ChatTurn
	expiresAt time.Time
}

// MemoryTurnRepository guarda el historial en el proceso. Sirve para desarrollo y tests.
type MemoryTurnRepository struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	opts     StoreOptions
	now      func() time.Time
}

func NewMemoryTurnRepository(opts StoreOptions) *MemoryTurnRepository {
	return &MemoryTurnRepository{
		sessions: make(map[string]*memorySession),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryTurnRepository) Append(_ context.Context, sessionID string, turn domain.ChatTurn) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ErrSessionRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	sess := r.liveSession(sessionID, now)
	if sess == nil {
		sess = &memorySession{}
		r.sessions[sessionID] = sess
	}

	// Los timestamps nunca retroceden dentro de una sesion.
	if n := len(sess.turns); n > 0 && turn.CreatedAt.Before(sess.turns[n-1].CreatedAt) {
		turn.CreatedAt = sess.turns[n-1].CreatedAt
	}
	sess.turns = append(sess.turns, turn)
	if r.opts.Limit > 0 && len(sess.turns) > r.opts.Limit {
		trimmed := make([]domain.ChatTurn, r.opts.Limit)
		copy(trimmed, sess.turns[len(sess.turns)-r.opts.Limit:])
		sess.turns = trimmed
	}
	if r.opts.TTL > 0 {
		sess.expiresAt = now.Add(r.opts.TTL)
	}
	return nil
}

func (r *MemoryTurnRepository) List(_ context.Context, sessionID string) ([]domain.ChatTurn, error) {
	sessionID = strings.TrimSpace(sessionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.liveSession(sessionID, r.now())
	if sess == nil {
		return []domain.ChatTurn{}, nil
	}
	out := make([]domain.ChatTurn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

func (r *MemoryTurnRepository) Clear(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, strings.TrimSpace(sessionID))
	return nil
}

// Sweep elimina sesiones vencidas y devuelve cuantas borro.
func (r *MemoryTurnRepository) Sweep(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var removed int64
	for id, sess := range r.sessions {
		if sess.expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// liveSession debe llamarse con mu tomado. No borra sesiones vencidas; eso lo hace Sweep.
func (r *MemoryTurnRepository) liveSession(sessionID string, now time.Time) *memorySession {
	sess, ok := r.sessions[sessionID]
	if !ok || sess.expired(now) {
		return nil
	}
	return sess
}

func (s *memorySession) expired(now time.Time) bool {
	return !s.expiresAt.IsZero() && !now.Before(s.expiresAt)
}
