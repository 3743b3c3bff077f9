package scheduler

import (
	"context"
	"time"

	"github.com/fekuna/stockholm-inventory-service/internal/inventory/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"go.uber.org/zap"
)

type Sweeper interface {
	Sweep(ctx context.Context) (*dto.SweepResult, error)
}

// Scheduler runs the low-stock sweep on a fixed interval.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   logger.ZapLogger
}

func New(sweeper Sweeper, interval time.Duration, log logger.ZapLogger) *Scheduler {
	return &Scheduler{sweeper: sweeper, interval: interval, logger: log}
}

// Start blocks until ctx is cancelled. Cancellation stops further ticks; a
// sweep already running completes. A non-positive interval disables it.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("low-stock scheduler disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("low-stock scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("low-stock scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.sweeper.Sweep(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("scheduled low-stock sweep failed", zap.Error(err))
			}
		}
	}
}
