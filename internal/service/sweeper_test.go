package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(context.Context) (int64, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestRunHistorySweeper_SweepsUntilCancelled(t *testing.T) {
	for _, sweepErr := range []error{nil, errors.New("db down")} {
		sweeper := &countingSweeper{err: sweepErr}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			RunHistorySweeper(ctx, zap.NewNop(), sweeper, 5*time.Millisecond)
			close(done)
		}()

		deadline := time.After(time.Second)
		for sweeper.calls.Load() < 2 {
			select {
			case <-deadline:
				t.Fatalf("sweeper ran %d times", sweeper.calls.Load())
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("sweeper did not stop after cancel")
		}
	}
}

func TestRunHistorySweeper_NilSweeperReturns(t *testing.T) {
	RunHistorySweeper(context.Background(), zap.NewNop(), nil, time.Millisecond)
}
