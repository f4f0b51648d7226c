package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pocket-guard/internal/repository"
)

// RunHistorySweeper borra periodicamente el historial de sesiones vencidas hasta que ctx termine.
func RunHistorySweeper(ctx context.Context, logger *zap.Logger, sweeper repository.Sweeper, every time.Duration) {
	if sweeper == nil {
		return
	}
	if every <= 0 {
		every = 10 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sweeper.Sweep(ctx)
			if err != nil {
				logger.Warn("history sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("history sweep", zap.Int64("removed", removed))
			}
		}
	}
}
