package stats

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"particles/internal/agent"
	"particles/internal/model"
)

func sampleGenerations() []model.GenerationRecord {
	start := time.Unix(1700000000, 0).UTC()
	return []model.GenerationRecord{
		{RunID: "run-123", Index: 1, StartTime: start, Duration: 1200 * time.Millisecond, Ticks: 240, GoalReachedCount: 0, PopulationSize: 4, BestFitness: 1.5, MeanFitness: 0.9, StdDevFitness: 0.3},
		{RunID: "run-123", Index: 2, StartTime: start, Duration: 900 * time.Millisecond, Ticks: 180, GoalReachedCount: 1, PopulationSize: 4, BestFitness: 6.25, MeanFitness: 2.1, StdDevFitness: 1.2},
		{RunID: "run-123", Index: 3, StartTime: start, Duration: 800 * time.Millisecond, Ticks: 160, GoalReachedCount: 2, PopulationSize: 4, BestFitness: 7, MeanFitness: 3.4, StdDevFitness: 1.9},
	}
}

func sampleMembers() []model.PopulationMember {
	return []model.PopulationMember{
		{Genome: agent.Genome{ForceCoefficient: 1}, Fitness: 0.5, Side: "top"},
		{Genome: agent.Genome{ForceCoefficient: 2}, Fitness: 7, GoalReached: true, Side: "right"},
		{Genome: agent.Genome{ForceCoefficient: 3}, Fitness: 3, Side: "bottom"},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:          "run-123",
			PopulationSize: 4,
			Generations:    3,
			Seed:           1,
			Workers:        2,
			Selection:      "roulette",
		},
		ConfigYAML:      []byte("population:\n  size: 4\n"),
		Generations:     sampleGenerations(),
		FinalPopulation: sampleMembers(),
		FinalGeneration: 3,
		TopCount:        2,
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	files := []string{configFile, configYAMLFile, generationsFile, generationsCSVFile, topGenomesFile, summaryFile, populationFile, fitnessPlotFile}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%v err=%v", ok, err)
	}
	if cfg.Selection != "roulette" || cfg.Workers != 2 {
		t.Fatalf("unexpected run config: %+v", cfg)
	}

	generations, ok, err := ReadGenerations(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read generations: ok=%v err=%v", ok, err)
	}
	if len(generations) != 3 || generations[1].Duration != 900*time.Millisecond {
		t.Fatalf("unexpected generations: %+v", generations)
	}

	population, ok, err := ReadPopulation(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read population: ok=%v err=%v", ok, err)
	}
	if population.Generation != 3 || len(population.Members) != 3 || population.RunID != "run-123" {
		t.Fatalf("unexpected population: %+v", population)
	}
	if _, ok, err := ReadPopulation(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing population, ok=%v err=%v", ok, err)
	}
}

func TestGenerationSeriesRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	runDir := filepath.Join(baseDir, "run-1")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := sampleGenerations()
	if err := WriteGenerationSeries(runDir, want); err != nil {
		t.Fatalf("write series: %v", err)
	}
	got, ok, err := ReadGenerationSeries(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%v err=%v", ok, err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Index != want[i].Index || got[i].Duration != want[i].Duration || got[i].BestFitness != want[i].BestFitness || got[i].GoalReachedCount != want[i].GoalReachedCount {
			t.Fatalf("row %d mismatch: got %+v want %+v", i, got[i], want[i])
		}
	}

	if _, ok, err := ReadGenerationSeries(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing series, ok=%v err=%v", ok, err)
	}
}

func TestRunIndexNewestFirst(t *testing.T) {
	baseDir := t.TempDir()
	cfg := RunConfig{RunID: "a", PopulationSize: 4, Seed: 1}
	if err := AppendRunIndex(baseDir, NewRunIndexEntry(cfg, sampleGenerations(), time.Unix(100, 0))); err != nil {
		t.Fatalf("append a: %v", err)
	}
	cfg.RunID = "b"
	if err := AppendRunIndex(baseDir, NewRunIndexEntry(cfg, nil, time.Unix(200, 0))); err != nil {
		t.Fatalf("append b: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 2 || index[0].RunID != "b" || index[1].RunID != "a" {
		t.Fatalf("unexpected index order: %+v", index)
	}
	if index[1].FinalBestFitness != 7 || index[1].GoalReached != 3 || index[1].Generations != 3 {
		t.Fatalf("unexpected index entry: %+v", index[1])
	}
}

func TestTopGenomes(t *testing.T) {
	top := TopGenomes(sampleMembers(), 2)
	if len(top) != 2 || top[0].Rank != 1 || top[0].Member.Fitness != 7 || top[1].Member.Fitness != 3 {
		t.Fatalf("unexpected top genomes: %+v", top)
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize("run-123", sampleGenerations())
	if summary.InitialBest != 1.5 || summary.FinalBest != 7 || summary.BestMax != 7 || summary.BestMin != 1.5 {
		t.Fatalf("unexpected summary bounds: %+v", summary)
	}
	if summary.Improvement != 5.5 || summary.TotalGoalReached != 3 || summary.FirstGoalGeneration != 2 {
		t.Fatalf("unexpected summary totals: %+v", summary)
	}
	if math.Abs(summary.BestMean-(1.5+6.25+7)/3) > 1e-9 {
		t.Fatalf("unexpected best mean: %v", summary.BestMean)
	}
	if math.Abs(summary.MeanSuccessRate-0.25) > 1e-9 {
		t.Fatalf("unexpected success rate: %v", summary.MeanSuccessRate)
	}

	empty := Summarize("none", nil)
	if empty.Generations != 0 || empty.FinalBest != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestPlotFitnessRejectsEmptyRecords(t *testing.T) {
	if err := PlotFitness(nil, "empty", filepath.Join(t.TempDir(), "fitness.png")); err == nil {
		t.Fatal("expected error for empty records")
	}
}
