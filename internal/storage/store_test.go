package storage

import (
	"context"
	"testing"
	"time"

	"particles/internal/agent"
	"particles/internal/model"
)

func sampleRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: Versioned(),
		ID:              id,
		CreatedAt:       created,
		Seed:            42,
		PopulationSize:  4,
		Config:          "population:\n  size: 4\n",
	}
}

func sampleSnapshot(runID string, generation int) model.PopulationSnapshot {
	return model.PopulationSnapshot{
		VersionedRecord: Versioned(),
		ID:              runID + "-pop",
		RunID:           runID,
		Generation:      generation,
		Members: []model.PopulationMember{
			{Genome: agent.Genome{ForceCoefficient: float64(generation), XSpeedLimit: 8}, Fitness: 2.5, Lifespan: time.Second, GoalReached: true, Side: "right"},
			{Genome: agent.Genome{ForceCoefficient: 7, YSpeedLimit: 9}, Fitness: 0.5, Lifespan: 300 * time.Millisecond, Side: "top"},
		},
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	if err := store.SaveRun(ctx, sampleRun("run-b", base.Add(time.Minute))); err != nil {
		t.Fatalf("save run b: %v", err)
	}
	if err := store.SaveRun(ctx, sampleRun("run-a", base)); err != nil {
		t.Fatalf("save run a: %v", err)
	}
	run, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if run.Seed != 42 || !run.CreatedAt.Equal(base) || run.Config == "" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%v err=%v", ok, err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Fatalf("unexpected run order: %+v", runs)
	}

	for _, index := range []int{2, 1, 3} {
		record := model.GenerationRecord{
			VersionedRecord:  Versioned(),
			RunID:            "run-a",
			Index:            index,
			StartTime:        base,
			Duration:         time.Duration(index) * time.Second,
			GoalReachedCount: index,
			PopulationSize:   4,
			Ticks:            index * 10,
			BestFitness:      float64(index),
		}
		if err := store.SaveGeneration(ctx, record); err != nil {
			t.Fatalf("save generation %d: %v", index, err)
		}
	}
	generations, err := store.ListGenerations(ctx, "run-a")
	if err != nil {
		t.Fatalf("list generations: %v", err)
	}
	if len(generations) != 3 || generations[0].Index != 1 || generations[2].Index != 3 {
		t.Fatalf("unexpected generations: %+v", generations)
	}
	if generations[1].Duration != 2*time.Second || generations[1].SuccessRate() != 0.5 {
		t.Fatalf("unexpected generation 2: %+v", generations[1])
	}
	if empty, err := store.ListGenerations(ctx, "run-b"); err != nil || len(empty) != 0 {
		t.Fatalf("expected no generations for run-b, got %d err=%v", len(empty), err)
	}

	if err := store.SavePopulation(ctx, sampleSnapshot("run-a", 1)); err != nil {
		t.Fatalf("save population 1: %v", err)
	}
	if err := store.SavePopulation(ctx, sampleSnapshot("run-a", 3)); err != nil {
		t.Fatalf("save population 3: %v", err)
	}
	snapshot, ok, err := store.GetPopulation(ctx, "run-a", 1)
	if err != nil || !ok {
		t.Fatalf("get population: ok=%v err=%v", ok, err)
	}
	if len(snapshot.Members) != 2 || snapshot.Members[0].Genome.ForceCoefficient != 1 || snapshot.Members[0].Lifespan != time.Second {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	latest, ok, err := store.LatestPopulation(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("latest population: ok=%v err=%v", ok, err)
	}
	if latest.Generation != 3 || latest.Genomes()[0].ForceCoefficient != 3 {
		t.Fatalf("unexpected latest snapshot: %+v", latest)
	}
	if _, ok, err := store.LatestPopulation(ctx, "run-b"); err != nil || ok {
		t.Fatalf("expected no population for run-b, ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}
