package backfill

import "context"

type Result struct {
	MigratedCount int `json:"migrated_count"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
}

type UseCase interface {
	// Run moves legacy options._variants entries into variant rows. A failing
	// item is counted and logged; only a failed listing aborts the run.
	Run(ctx context.Context) (*Result, error)
}
