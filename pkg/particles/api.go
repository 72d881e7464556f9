package particles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"particles/internal/agent"
	"particles/internal/config"
	"particles/internal/model"
	"particles/internal/render"
	"particles/internal/report"
	"particles/internal/sim"
	"particles/internal/stats"
	"particles/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "particles.db"
	defaultTopCount   = 10
)

var ErrNoRuns = errors.New("no runs available")

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store       storage.Store
	initialized bool
	log         *slog.Logger

	runsDir    string
	exportsDir string
}

type RunRequest struct {
	// Config defaults to the embedded configuration.
	Config *config.Config
	// RunID is generated when empty.
	RunID string
	// Generations overrides simulation.generations when > 0. With neither
	// set the run continues until ctx is cancelled.
	Generations int
	// ResumeFrom seeds the first generation from the last stored population
	// of that run. ResumeLatest picks the newest indexed run.
	ResumeFrom   string
	ResumeLatest bool
	// Start delivers one start signal per generation. A nil channel starts
	// each generation as soon as the previous one is done, and a closed
	// channel starts all remaining generations.
	Start    <-chan struct{}
	Renderer render.Renderer
	// Reporters receive each generation record after the built-in store
	// reporter.
	Reporters []report.Reporter
	TopCount  int
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	ResumedFrom      string
	FirstGeneration  int
	Generations      int
	BestByGeneration []float64
	FinalBestFitness float64
	GoalReached      int
	// Cancelled is set when ctx ended the run while waiting for a start
	// signal.
	Cancelled bool
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Seed             int64
	Population       int
	Generations      int
	FinalBestFitness float64
	GoalReached      int
}

type GenerationsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type PopulationRequest struct {
	RunID  string
	Latest bool
	// Generation selects a stored generation; zero means the last one.
	Generation int
	Limit      int
}

type PopulationSummary struct {
	RunID      string
	Generation int
	Size       int
	Top        []stats.TopGenome
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type PlotRequest struct {
	RunID  string
	Latest bool
	// OutPath defaults to fitness.png in the run's artifacts directory.
	OutPath string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		log:        logger,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Run evolves a population generation by generation. Cancelling ctx is
// honoured only between generations, while waiting for the start signal;
// a generation in progress always runs to completion.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}
	cfg := req.Config
	if cfg == nil {
		def, err := config.Default()
		if err != nil {
			return RunSummary{}, err
		}
		cfg = def
	} else if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	generations := req.Generations
	if generations <= 0 {
		generations = cfg.Simulation.Generations
	}
	if req.ResumeFrom != "" && req.ResumeLatest {
		return RunSummary{}, errors.New("use either resume run id or resume latest")
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	configYAML, err := cfg.YAML()
	if err != nil {
		return RunSummary{}, err
	}

	setup := controllerSetup{
		firstGeneration: 1,
		logger:          c.log.With("run_id", runID),
	}
	resumedFrom := req.ResumeFrom
	if req.ResumeLatest {
		resumedFrom, err = c.latestRunID()
		if err != nil {
			return RunSummary{}, err
		}
	}
	if resumedFrom != "" {
		snapshot, err := c.population(ctx, resumedFrom, 0)
		if err != nil {
			return RunSummary{}, fmt.Errorf("resume from %s: %w", resumedFrom, err)
		}
		setup.seed = snapshot.Genomes()
		setup.firstGeneration = snapshot.Generation + 1
	}

	ctrl, err := newController(cfg, setup)
	if err != nil {
		return RunSummary{}, err
	}

	// Finished generations are persisted even after ctx is cancelled.
	persist := context.WithoutCancel(ctx)
	created := time.Now().UTC()
	reporters := report.Multi{report.Store{Store: c.store, RunID: runID}}
	reporters = append(reporters, req.Reporters...)
	c.log.Info("run started", "run_id", runID, "population", cfg.Population.Size, "generations", generations, "resumed_from", resumedFrom)

	var (
		records   []model.GenerationRecord
		final     model.PopulationSnapshot
		cancelled bool
	)
	for generations == 0 || len(records) < generations {
		if err := awaitStart(ctx, req.Start); err != nil {
			if len(records) == 0 {
				return RunSummary{}, err
			}
			cancelled = true
			break
		}
		record, err := runGeneration(ctrl, req.Renderer)
		if err != nil {
			return RunSummary{}, fmt.Errorf("generation %d: %w", ctrl.Generation(), err)
		}
		if err := reporters.Report(persist, record); err != nil {
			return RunSummary{}, err
		}
		final = populationSnapshot(runID, record.Index, ctrl.Population())
		if err := c.store.SavePopulation(persist, final); err != nil {
			return RunSummary{}, fmt.Errorf("save population %d: %w", record.Index, err)
		}
		records = append(records, report.GenerationRecord(runID, record))
	}

	runConfig := stats.RunConfig{
		RunID:              runID,
		ResumedFrom:        resumedFrom,
		InitialGeneration:  setup.firstGeneration,
		PopulationSize:     cfg.Population.Size,
		Generations:        len(records),
		Seed:               cfg.Simulation.Seed,
		Workers:            cfg.Simulation.Workers,
		Selection:          cfg.Selection.Method,
		MutationRate:       cfg.Mutation.Rate,
		VariancePercentage: cfg.Mutation.VariancePercentage,
		TickCadenceMS:      cfg.Simulation.TickCadence.Milliseconds(),
		MaxTicks:           cfg.Simulation.MaxTicks,
		Clock:              cfg.Simulation.Clock,
	}
	summary := stats.Summarize(runID, records)
	if err := c.store.SaveRun(persist, model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		CreatedAt:       created,
		Seed:            cfg.Simulation.Seed,
		PopulationSize:  cfg.Population.Size,
		ResumedFrom:     resumedFrom,
		Config:          string(configYAML),
		Generations:     len(records),
		BestFitness:     summary.FinalBest,
		GoalReached:     summary.TotalGoalReached,
	}); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config:          runConfig,
		ConfigYAML:      configYAML,
		Generations:     records,
		FinalPopulation: final.Members,
		FinalGeneration: final.Generation,
		TopCount:        req.TopCount,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.NewRunIndexEntry(runConfig, records, created)); err != nil {
		return RunSummary{}, err
	}
	c.log.Info("run finished", "run_id", runID, "generations", len(records), "final_best", summary.FinalBest, "cancelled", cancelled)

	best := make([]float64, len(records))
	for i, r := range records {
		best[i] = r.BestFitness
	}
	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		ResumedFrom:      resumedFrom,
		FirstGeneration:  setup.firstGeneration,
		Generations:      len(records),
		BestByGeneration: best,
		FinalBestFitness: summary.FinalBest,
		GoalReached:      summary.TotalGoalReached,
		Cancelled:        cancelled,
	}, nil
}

func awaitStart(ctx context.Context, start <-chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if start == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-start:
		return nil
	}
}

// runGeneration starts the controller's next generation and ticks it to
// Done, rendering after every tick.
func runGeneration(ctrl *sim.Controller, renderer render.Renderer) (sim.Record, error) {
	if renderer == nil {
		renderer = render.Nop{}
	}
	if err := ctrl.Start(); err != nil {
		return sim.Record{}, err
	}
	if err := renderer.Render(ctrl.Snapshot()); err != nil {
		return sim.Record{}, fmt.Errorf("render: %w", err)
	}
	for {
		state, err := ctrl.Tick()
		if err != nil {
			return sim.Record{}, err
		}
		if err := renderer.Render(ctrl.Snapshot()); err != nil {
			return sim.Record{}, fmt.Errorf("render: %w", err)
		}
		if state == sim.StateDone {
			record, _ := ctrl.Record()
			return record, nil
		}
	}
}

func populationSnapshot(runID string, generation int, population []*agent.Agent) model.PopulationSnapshot {
	members := make([]model.PopulationMember, len(population))
	for i, a := range population {
		side := ""
		if a.Hit != nil {
			side = string(a.Hit.Side)
		}
		members[i] = model.PopulationMember{
			Genome:       a.Genome,
			Fitness:      a.Fitness,
			Lifespan:     a.Lifespan,
			WallsAvoided: a.WallsAvoided,
			GoalReached:  a.GoalReached,
			Side:         side,
		}
	}
	return model.PopulationSnapshot{
		VersionedRecord: storage.Versioned(),
		ID:              uuid.NewString(),
		RunID:           runID,
		Generation:      generation,
		Members:         members,
	}
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			FinalBestFitness: e.FinalBestFitness,
			GoalReached:      e.GoalReached,
		})
	}
	return out, nil
}

// Generations lists a run's generation records, oldest first. Records come
// from the store and fall back to the run's artifacts.
func (c *Client) Generations(ctx context.Context, req GenerationsRequest) ([]model.GenerationRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	records, err := c.generations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[len(records)-req.Limit:]
	}
	return records, nil
}

func (c *Client) generations(ctx context.Context, runID string) ([]model.GenerationRecord, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	records, err := c.store.ListGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		return records, nil
	}
	records, ok, err := stats.ReadGenerations(c.runsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return records, nil
}

// Population returns the fittest members of a stored generation.
func (c *Client) Population(ctx context.Context, req PopulationRequest) (PopulationSummary, error) {
	if req.Limit < 0 {
		return PopulationSummary{}, errors.New("limit must be >= 0")
	}
	if req.Generation < 0 {
		return PopulationSummary{}, errors.New("generation must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return PopulationSummary{}, err
	}
	snapshot, err := c.population(ctx, runID, req.Generation)
	if err != nil {
		return PopulationSummary{}, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultTopCount
	}
	return PopulationSummary{
		RunID:      runID,
		Generation: snapshot.Generation,
		Size:       len(snapshot.Members),
		Top:        stats.TopGenomes(snapshot.Members, limit),
	}, nil
}

// population loads a generation snapshot from the store, falling back to the
// final population saved with the run's artifacts.
func (c *Client) population(ctx context.Context, runID string, generation int) (model.PopulationSnapshot, error) {
	if err := c.ensureStore(ctx); err != nil {
		return model.PopulationSnapshot{}, err
	}
	var (
		snapshot model.PopulationSnapshot
		ok       bool
		err      error
	)
	if generation > 0 {
		snapshot, ok, err = c.store.GetPopulation(ctx, runID, generation)
	} else {
		snapshot, ok, err = c.store.LatestPopulation(ctx, runID)
	}
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	if ok {
		return snapshot, nil
	}

	snapshot, ok, err = stats.ReadPopulation(c.runsDir, runID)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	if !ok || (generation > 0 && snapshot.Generation != generation) {
		return model.PopulationSnapshot{}, fmt.Errorf("population not found: run=%s generation=%d", runID, generation)
	}
	return snapshot, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Plot renders best and mean fitness per generation to a PNG.
func (c *Client) Plot(ctx context.Context, req PlotRequest) (string, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return "", err
	}
	records, err := c.generations(ctx, runID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("run %s has no generations", runID)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	out := req.OutPath
	if out == "" {
		out = filepath.Join(c.runsDir, runID, "fitness.png")
	}
	if err := stats.PlotFitness(records, fmt.Sprintf("run %s", runID), out); err != nil {
		return "", err
	}
	return filepath.Clean(out), nil
}

// WriteDefaultConfig writes the embedded configuration document to w.
func WriteDefaultConfig(w io.Writer) error {
	_, err := w.Write(config.DefaultsYAML())
	return err
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	return c.latestRunID()
}

func (c *Client) latestRunID() (string, error) {
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNoRuns
	}
	return entries[0].RunID, nil
}
