package main

import (
	"errors"
	"testing"

	"github.com/fekuna/stockholm-inventory-service/internal/backfill"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReportExitCode(t *testing.T) {
	tests := []struct {
		name string
		res  *backfill.Result
		err  error
		want int
	}{
		{"clean run", &backfill.Result{MigratedCount: 3, Skipped: 1}, nil, 0},
		{"nothing to do", &backfill.Result{}, nil, 0},
		{"item failed", &backfill.Result{MigratedCount: 2, Failed: 1}, nil, 1},
		{"listing failed", nil, errors.New("connection refused"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			if got := report(logger.FromZap(zap.New(core)), tt.res, tt.err); got != tt.want {
				t.Errorf("report = %d, want %d", got, tt.want)
			}
			if logs.Len() != 1 {
				t.Errorf("logged %d entries, want 1", logs.Len())
			}
		})
	}
}
