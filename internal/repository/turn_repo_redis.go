package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pocket-guard/internal/domain"
)

// redisAppendScript agrega el turno, recorta al limite y renueva el TTL en una sola operacion atomica.
const redisAppendScript = `
redis.call("RPUSH", KEYS[1], ARGV[1])
local limit = tonumber(ARGV[2])
if limit > 0 then
  redis.call("LTRIM", KEYS[1], -limit, -1)
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("EXPIRE", KEYS[1], ttl)
end
return redis.call("LLEN", KEYS[1])
`

type redisHistoryClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTurnRepository guarda cada sesion como una lista de turnos JSON.
// La expiracion la maneja Redis con el TTL de la sesion.
type RedisTurnRepository struct {
	client redisHistoryClient
	opts   StoreOptions
	prefix string
}

func NewRedisTurnRepository(client *redis.Client, opts StoreOptions) *RedisTurnRepository {
	return &RedisTurnRepository{
		client: client,
		opts:   opts,
		prefix: "buddy:history:",
	}
}

type redisTurn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *RedisTurnRepository) Append(ctx context.Context, sessionID string, turn domain.ChatTurn) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ErrSessionRequired
	}
	payload, err := json.Marshal(redisTurn{
		ID:        turn.ID,
		Role:      string(turn.Role),
		Text:      turn.Text,
		CreatedAt: turn.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	ttlSeconds := int(r.opts.TTL.Seconds())
	if ttlSeconds < 0 {
		ttlSeconds = 0
	}
	limit := r.opts.Limit
	if limit < 0 {
		limit = 0
	}
	if err := r.client.Eval(ctx, redisAppendScript, []string{r.prefix + sessionID}, string(payload), limit, ttlSeconds).Err(); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

func (r *RedisTurnRepository) List(ctx context.Context, sessionID string) ([]domain.ChatTurn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return []domain.ChatTurn{}, nil
	}
	raw, err := r.client.LRange(ctx, r.prefix+sessionID, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.ChatTurn{}, nil
		}
		return nil, fmt.Errorf("redis list: %w", err)
	}

	turns := make([]domain.ChatTurn, 0, len(raw))
	for _, item := range raw {
		var rt redisTurn
		// Entradas corruptas se omiten para no perder el resto del historial.
		if err := json.Unmarshal([]byte(item), &rt); err != nil {
			continue
		}
		turns = append(turns, domain.ChatTurn{
			ID:        rt.ID,
			Role:      domain.ParseRole(rt.Role),
			Text:      rt.Text,
			CreatedAt: rt.CreatedAt,
		})
	}
	return turns, nil
}

func (r *RedisTurnRepository) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := r.client.Del(ctx, r.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}
