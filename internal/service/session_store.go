package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRevocationStore recuerda las sesiones cerradas hasta que su token expira.
type SessionRevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

type memorySessionRevocationStore struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

func NewMemorySessionRevocationStore() SessionRevocationStore {
	return &memorySessionRevocationStore{
		items: make(map[string]time.Time),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *memorySessionRevocationStore) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.items {
		if now.After(exp) {
			delete(s.items, id)
		}
	}
	s.items[sessionID] = now.Add(ttl)
	return nil
}

func (s *memorySessionRevocationStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[sessionID]
	if !ok {
		return false, nil
	}
	if s.now().After(exp) {
		delete(s.items, sessionID)
		return false, nil
	}
	return true, nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisSessionRevocationStore struct {
	client redisKVClient
	prefix string
}

func NewRedisSessionRevocationStore(client *redis.Client) SessionRevocationStore {
	if client == nil {
		return nil
	}
	return &redisSessionRevocationStore{
		client: client,
		prefix: "auth:revoked:",
	}
}

func (s *redisSessionRevocationStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+sessionID, "1", ttl).Err()
}

func (s *redisSessionRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	n, err := s.client.Exists(ctx, s.prefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
