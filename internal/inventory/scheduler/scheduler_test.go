package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fekuna/stockholm-inventory-service/internal/inventory/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep(ctx context.Context) (*dto.SweepResult, error) {
	s.calls.Add(1)
	return &dto.SweepResult{}, ctx.Err()
}

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	sw := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(sw, 5*time.Millisecond, logger.NewNop()).Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sw.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not tick")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	stopped := sw.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if sw.calls.Load() != stopped {
		t.Error("sweeps ran after cancellation")
	}
}

func TestSchedulerDisabled(t *testing.T) {
	sw := &countingSweeper{}
	done := make(chan struct{})
	go func() {
		New(sw, 0, logger.NewNop()).Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled scheduler blocked")
	}
	if sw.calls.Load() != 0 {
		t.Error("disabled scheduler swept")
	}
}
