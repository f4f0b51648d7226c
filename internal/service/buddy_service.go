package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pocket-guard/internal/domain"
	"pocket-guard/internal/repository"
)

// ModelGateway es lo que el relay necesita del gateway del modelo.
type ModelGateway interface {
	Configured() bool
	ProviderName() string
	Invoke(ctx context.Context, req domain.ModelRequest, timeout time.Duration) domain.ModelResult
}

// BuddyOptions se fija al iniciar el proceso.
type BuddyOptions struct {
	ModelTimeout    time.Duration
	ContextTurns    int
	MaxMessageChars int
}

// BuddyService es el relay de Buddy: guarda el turno del usuario, consulta el modelo
// (o el fallback) y guarda la respuesta. Es el unico que escribe el historial.
type BuddyService struct {
	logger   *zap.Logger
	history  repository.TurnRepository
	gateway  ModelGateway
	fallback *FallbackResponder
	opts     BuddyOptions
	locks    *sessionLocker

	// resets invalida los turnos en vuelo de una sesion reseteada o terminada.
	resets *resetGuard

	now   func() time.Time
	newID func() string
}

func NewBuddyService(logger *zap.Logger, history repository.TurnRepository, gateway ModelGateway, fallback *FallbackResponder, opts BuddyOptions) *BuddyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallback == nil {
		fallback = NewFallbackResponder()
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = 15 * time.Second
	}
	if opts.MaxMessageChars <= 0 {
		opts.MaxMessageChars = 4000
	}
	if opts.ContextTurns < 0 {
		opts.ContextTurns = 0
	}
	return &BuddyService{
		logger:   logger,
		history:  history,
		gateway:  gateway,
		fallback: fallback,
		opts:     opts,
		locks:    newSessionLocker(),
		resets:   newResetGuard(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// SendMessage procesa un mensaje del usuario y devuelve la respuesta final.
// Solo devuelve error por entrada invalida, sesion ausente o contexto cancelado antes de empezar;
// las fallas del modelo se absorben con el fallback.
func (s *BuddyService) SendMessage(ctx context.Context, sessionID, message string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", domain.ErrSessionRequired
	}
	text := strings.TrimSpace(message)
	if text == "" {
		return "", fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > s.opts.MaxMessageChars {
		return "", fmt.Errorf("%w: message exceeds %d characters", domain.ErrInvalidInput, s.opts.MaxMessageChars)
	}

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer unlock()

	ticket := s.resets.Begin(sessionID)
	defer ticket.Done()
	// Las escrituras no dependen de que el cliente siga conectado.
	storeCtx := context.WithoutCancel(ctx)

	prior, err := s.history.List(ctx, sessionID)
	if err != nil {
		s.logger.Warn("buddy history read failed", zap.String("session_id", sessionID), zap.Error(err))
		prior = nil
	}

	userTurn := domain.ChatTurn{
		ID:        s.newID(),
		Role:      domain.RoleUser,
		Text:      text,
		CreatedAt: s.stamp(lastTurnTime(prior)),
	}
	stored, err := ticket.Commit(func() error {
		return s.history.Append(storeCtx, sessionID, userTurn)
	})
	if err != nil {
		s.logger.Warn("buddy append user turn failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if !stored {
		// El historial leido ya no existe.
		prior = nil
	}

	reply := s.reply(ctx, sessionID, text, prior)

	assistantTurn := domain.ChatTurn{
		ID:        s.newID(),
		Role:      domain.RoleAssistant,
		Text:      reply,
		CreatedAt: s.stamp(userTurn.CreatedAt),
	}
	if !stored {
		s.logger.Info("buddy session reset during turn, turn not stored", zap.String("session_id", sessionID))
		return reply, nil
	}
	stored, err = ticket.Commit(func() error {
		return s.history.Append(storeCtx, sessionID, assistantTurn)
	})
	if err != nil {
		s.logger.Warn("buddy append assistant turn failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if !stored {
		s.logger.Info("buddy session reset during turn, reply not stored", zap.String("session_id", sessionID))
	}
	return reply, nil
}

func (s *BuddyService) reply(ctx context.Context, sessionID, text string, prior []domain.ChatTurn) string {
	if s.gateway == nil || !s.gateway.Configured() {
		return s.fallback.Reply(text, prior)
	}

	result := s.gateway.Invoke(ctx, domain.ModelRequest{
		Prompt:  text,
		Context: domain.TrailingTurns(prior, s.opts.ContextTurns),
	}, s.opts.ModelTimeout)

	reply := cleanModelReply(result.Text)
	if !result.OK() || reply == "" {
		kind := result.Failure.String()
		if result.OK() {
			kind = "empty_reply"
		}
		s.logger.Info("buddy fallback reply", zap.String("session_id", sessionID), zap.String("reason", kind))
		return s.fallback.Reply(text, prior)
	}
	return truncateRunes(reply, s.opts.MaxMessageChars)
}

// History devuelve el transcript completo en orden cronologico. No tiene efectos.
func (s *BuddyService) History(ctx context.Context, sessionID string) ([]domain.ChatTurn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrSessionRequired
	}
	return s.history.List(ctx, sessionID)
}

// Reset vacia el historial de la sesion. Es idempotente y no toca el modelo.
func (s *BuddyService) Reset(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ErrSessionRequired
	}
	s.resets.Bump(sessionID)
	return s.history.Clear(ctx, sessionID)
}

// EndSession destruye el historial cuando la sesion autenticada termina (logout).
func (s *BuddyService) EndSession(ctx context.Context, sessionID string) error {
	return s.Reset(ctx, sessionID)
}

// ModelStatus informa si hay modelo activo y cual.
func (s *BuddyService) ModelStatus() (bool, string) {
	if s.gateway == nil {
		return false, "none"
	}
	return s.gateway.Configured(), s.gateway.ProviderName()
}

func (s *BuddyService) stamp(notBefore time.Time) time.Time {
	now := s.now()
	if now.Before(notBefore) {
		return notBefore
	}
	return now
}

func lastTurnTime(turns []domain.ChatTurn) time.Time {
	if len(turns) == 0 {
		return time.Time{}
	}
	return turns[len(turns)-1].CreatedAt
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
