package storage

import (
	"context"

	"particles/internal/model"
)

// Store defines persistence operations for runs, generation records and
// population snapshots.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveGeneration(ctx context.Context, record model.GenerationRecord) error
	ListGenerations(ctx context.Context, runID string) ([]model.GenerationRecord, error)
	SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetPopulation(ctx context.Context, runID string, generation int) (model.PopulationSnapshot, bool, error)
	LatestPopulation(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error)
}
