package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisKVClient struct {
	lastSetKey string
	lastSetVal interface{}
	lastSetTTL time.Duration
	lastExists []string

	setErr    error
	existsErr error
	existsN   int64
}

func (m *mockRedisKVClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lastSetKey = key
	m.lastSetVal = value
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKVClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	m.lastExists = keys
	cmd := redis.NewIntCmd(ctx)
	if m.existsErr != nil {
		cmd.SetErr(m.existsErr)
		return cmd
	}
	cmd.SetVal(m.existsN)
	return cmd
}

func TestMemorySessionRevocationStore_Basics(t *testing.T) {
	store := NewMemorySessionRevocationStore()
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "sid-1")
	if err != nil || revoked {
		t.Fatalf("expected unknown session to be active, got revoked=%v err=%v", revoked, err)
	}
	if err := store.Revoke(ctx, "sid-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = store.IsRevoked(ctx, "sid-1")
	if err != nil || !revoked {
		t.Fatalf("expected session revoked, got revoked=%v err=%v", revoked, err)
	}
	if err := store.Revoke(ctx, "  ", time.Minute); err != nil {
		t.Fatalf("expected blank id to be ignored, got %v", err)
	}
}

func TestMemorySessionRevocationStore_ForgetsAfterTTL(t *testing.T) {
	store := NewMemorySessionRevocationStore().(*memorySessionRevocationStore)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	_ = store.Revoke(context.Background(), "sid-1", time.Minute)
	store.now = func() time.Time { return base.Add(2 * time.Minute) }

	revoked, _ := store.IsRevoked(context.Background(), "sid-1")
	if revoked {
		t.Fatalf("expected revocation to lapse with the token")
	}
}

func TestRedisSessionRevocationStore(t *testing.T) {
	t.Run("revoke sets key with ttl", func(t *testing.T) {
		mock := &mockRedisKVClient{}
		store := &redisSessionRevocationStore{client: mock, prefix: "auth:revoked:"}
		if err := store.Revoke(context.Background(), "sid-1", 5*time.Minute); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if mock.lastSetKey != "auth:revoked:sid-1" || mock.lastSetTTL != 5*time.Minute {
			t.Fatalf("unexpected set key=%q ttl=%v", mock.lastSetKey, mock.lastSetTTL)
		}
	})

	t.Run("is revoked reads exists", func(t *testing.T) {
		mock := &mockRedisKVClient{existsN: 1}
		store := &redisSessionRevocationStore{client: mock, prefix: "auth:revoked:"}
		revoked, err := store.IsRevoked(context.Background(), "sid-1")
		if err != nil || !revoked {
			t.Fatalf("expected revoked, got %v err=%v", revoked, err)
		}
		if len(mock.lastExists) != 1 || mock.lastExists[0] != "auth:revoked:sid-1" {
			t.Fatalf("unexpected exists keys %+v", mock.lastExists)
		}
	})

	t.Run("errors propagate", func(t *testing.T) {
		mock := &mockRedisKVClient{setErr: errors.New("down"), existsErr: errors.New("down")}
		store := &redisSessionRevocationStore{client: mock, prefix: "auth:revoked:"}
		if err := store.Revoke(context.Background(), "sid-1", time.Minute); err == nil {
			t.Fatalf("expected revoke error")
		}
		if _, err := store.IsRevoked(context.Background(), "sid-1"); err == nil {
			t.Fatalf("expected exists error")
		}
	})

	t.Run("nil client returns nil store", func(t *testing.T) {
		if NewRedisSessionRevocationStore(nil) != nil {
			t.Fatalf("expected nil store for nil client")
		}
	})
}
