package report

import (
	"context"
	"fmt"

	"particles/internal/model"
	"particles/internal/sim"
	"particles/internal/storage"
)

// Store persists each record as a generation of RunID.
type Store struct {
	Store storage.Store
	RunID string
}

func (s Store) Report(ctx context.Context, r sim.Record) error {
	if err := s.Store.SaveGeneration(ctx, GenerationRecord(s.RunID, r)); err != nil {
		return fmt.Errorf("save generation %d: %w", r.Index, err)
	}
	return nil
}

func GenerationRecord(runID string, r sim.Record) model.GenerationRecord {
	return model.GenerationRecord{
		VersionedRecord:  storage.Versioned(),
		RunID:            runID,
		Index:            r.Index,
		StartTime:        r.StartTime,
		Duration:         r.Duration,
		GoalReachedCount: r.GoalReachedCount,
		PopulationSize:   r.PopulationSize,
		Ticks:            r.Ticks,
		BestFitness:      r.BestFitness,
		MeanFitness:      r.MeanFitness,
		StdDevFitness:    r.StdDevFitness,
	}
}
