package sim

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/golang/geo/r2"

	"particles/internal/agent"
	"particles/internal/boundary"
	"particles/internal/evo"
	"particles/internal/grid"
)

type uniformSampler struct{}

func (uniformSampler) Sample(rng agent.Rand) agent.Genome {
	return agent.Genome{
		ForceCoefficient:     rng.Float64() * 100,
		StabilityCoefficient: 0.5,
		RandomCoefficient:    rng.Float64()*20 - 10,
		ForwardCoefficient:   0.25,
		XSpeedLimit:          rng.Float64()*10 + 6,
		YSpeedLimit:          rng.Float64()*10 + 6,
		RadarStrength:        rng.Float64() * 100,
		InitialXSpeed:        rng.Float64()*6 - 3,
		InitialYSpeed:        rng.Float64()*6 - 3,
	}
}

func newTestConfig(t *testing.T, seed int64) Config {
	t.Helper()
	box, err := boundary.NewBox(boundary.Config{
		Width:               1600,
		Height:              600,
		Thickness:           120,
		HorizontalThickness: 200,
		Padding:             boundary.DefaultPadding,
	})
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	g, err := grid.New(1600, 600, 100, 0)
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	return Config{
		Box:                box,
		Grid:               g,
		Width:              1600,
		Height:             600,
		PopulationSize:     4,
		Start:              r2.Point{X: 160, Y: 300},
		Radius:             16,
		Sampler:            uniformSampler{},
		MutationRate:       evo.DefaultMutationRate,
		VariancePercentage: evo.DefaultVariancePercentage,
		Weights:            evo.DefaultWeights(),
		Clock:              NewSimClock(time.Unix(0, 0), 5*time.Millisecond),
		MaxTicks:           DefaultMaxTicks,
		Rand:               rand.New(rand.NewSource(seed)),
	}
}

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := NewController(cfg)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]State{
		{StateUninitialized, StateInitialization},
		{StateInitialization, StateRun},
		{StateRun, StateRun},
		{StateRun, StateEvaluation},
		{StateEvaluation, StateSelection},
		{StateSelection, StateCrossover},
		{StateCrossover, StateMutation},
		{StateMutation, StateDone},
		{StateDone, StateRun},
	}
	isAllowed := map[[2]State]bool{}
	for _, pair := range allowed {
		isAllowed[pair] = true
	}
	for from := StateUninitialized; from <= StateDone; from++ {
		for to := StateUninitialized; to <= StateDone; to++ {
			if got := CanTransition(from, to); got != isAllowed[[2]State{from, to}] {
				t.Fatalf("CanTransition(%s, %s)=%v", from, to, got)
			}
		}
	}
}

func TestControllerVisitsStatesInOrderAcrossGenerations(t *testing.T) {
	cfg := newTestConfig(t, 42)
	var visited []State
	var generations []int
	reentries := 0
	var c *Controller
	cfg.OnTransition = func(from, to State) {
		if from == StateRun && to == StateRun {
			reentries++
			return
		}
		if len(visited) == 0 {
			visited = append(visited, from)
		}
		visited = append(visited, to)
		if from == StateDone && to == StateRun {
			generations = append(generations, c.Generation())
		}
	}
	c = newTestController(t, cfg)

	ctx := context.Background()
	first, err := c.RunGeneration(ctx)
	if err != nil {
		t.Fatalf("generation 1: %v", err)
	}
	second, err := c.RunGeneration(ctx)
	if err != nil {
		t.Fatalf("generation 2: %v", err)
	}

	want := []State{
		StateUninitialized, StateInitialization, StateRun,
		StateEvaluation, StateSelection, StateCrossover, StateMutation, StateDone,
		StateRun,
		StateEvaluation, StateSelection, StateCrossover, StateMutation, StateDone,
	}
	if len(visited) != len(want) {
		t.Fatalf("unexpected state sequence: %v", visited)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("state %d: got %s want %s (sequence %v)", i, visited[i], want[i], visited)
		}
	}
	if first.Index != 1 || second.Index != 2 {
		t.Fatalf("unexpected record indexes: %d, %d", first.Index, second.Index)
	}
	// Every tick but the last of a generation re-enters Run.
	if want := first.Ticks - 1 + second.Ticks - 1; reentries != want {
		t.Fatalf("expected %d run re-entries, got %d", want, reentries)
	}
	if len(generations) != 1 || generations[0] != 2 {
		t.Fatalf("expected generation 2 after Done->Run, got %v", generations)
	}
	if c.Generation() != 2 || c.State() != StateDone {
		t.Fatalf("unexpected final controller: generation=%d state=%s", c.Generation(), c.State())
	}
}

func TestControllerGenerationRecord(t *testing.T) {
	cfg := newTestConfig(t, 7)
	c := newTestController(t, cfg)
	rec, err := c.RunGeneration(context.Background())
	if err != nil {
		t.Fatalf("run generation: %v", err)
	}
	if rec.PopulationSize != 4 || rec.Ticks <= 0 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Duration != time.Duration(rec.Ticks)*5*time.Millisecond {
		t.Fatalf("expected duration to follow sim clock, got %v for %d ticks", rec.Duration, rec.Ticks)
	}
	if rec.BestFitness < rec.MeanFitness {
		t.Fatalf("best fitness below mean: %+v", rec)
	}
	got, ok := c.Record()
	if !ok || got != rec {
		t.Fatalf("expected Record() to return the finished record")
	}
	for _, a := range c.Population() {
		if !a.Dead {
			t.Fatalf("agent %d still alive after generation", a.ID)
		}
		if a.Lifespan < 5*time.Millisecond {
			t.Fatalf("agent %d lifespan %v below one tick", a.ID, a.Lifespan)
		}
	}
	if len(c.ParentPool()) != 2 {
		t.Fatalf("expected 2 parents, got %d", len(c.ParentPool()))
	}
	if len(c.NextGeneration()) != 4 {
		t.Fatalf("expected next generation of 4, got %d", len(c.NextGeneration()))
	}
	for _, a := range c.NextGeneration() {
		if a.Position != cfg.Start || a.Dead {
			t.Fatalf("next generation agent %d not reset", a.ID)
		}
	}
}

func TestControllerRejectsInvalidEvents(t *testing.T) {
	c := newTestController(t, newTestConfig(t, 1))
	if _, err := c.Tick(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent before start, got %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent on start during run, got %v", err)
	}
}

func TestControllerZeroDurationHalts(t *testing.T) {
	cfg := newTestConfig(t, 1)
	cfg.Clock = NewSimClock(time.Unix(0, 0), 0)
	cfg.MaxTicks = 1
	c := newTestController(t, cfg)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err := c.Tick()
	var misuse *ControllerMisuseError
	if !errors.As(err, &misuse) {
		t.Fatalf("expected ControllerMisuseError, got %v", err)
	}
	if misuse.Op != "evaluate" {
		t.Fatalf("unexpected misuse op: %s", misuse.Op)
	}
	if !errors.Is(err, ErrHalted) {
		t.Fatalf("expected ErrHalted, got %v", err)
	}
	if _, again := c.Tick(); again != err {
		t.Fatalf("expected the same halt error, got %v", again)
	}
	if again := c.Start(); again != err {
		t.Fatalf("expected the same halt error from start, got %v", again)
	}
	if _, ok := c.Record(); ok {
		t.Fatal("expected no finished record")
	}
}

func TestControllerMaxTicksTimesOutAgents(t *testing.T) {
	cfg := newTestConfig(t, 3)
	cfg.MaxTicks = 2
	c := newTestController(t, cfg)
	rec, err := c.RunGeneration(context.Background())
	if err != nil {
		t.Fatalf("run generation: %v", err)
	}
	if rec.Ticks > 2 {
		t.Fatalf("expected at most 2 ticks, got %d", rec.Ticks)
	}
	for _, a := range c.Population() {
		if a.Hit == nil {
			t.Fatalf("agent %d has no hit", a.ID)
		}
		if a.Hit.Side == boundary.SideTimeout && a.GoalReached {
			t.Fatalf("timed out agent %d marked as goal", a.ID)
		}
	}
}

func TestControllerWorkersDoNotChangeResults(t *testing.T) {
	run := func(workers int) ([]r2.Point, Record) {
		cfg := newTestConfig(t, 21)
		cfg.PopulationSize = 24
		cfg.Workers = workers
		c := newTestController(t, cfg)
		ctx := context.Background()
		if _, err := c.RunGeneration(ctx); err != nil {
			t.Fatalf("generation 1: %v", err)
		}
		rec, err := c.RunGeneration(ctx)
		if err != nil {
			t.Fatalf("generation 2: %v", err)
		}
		positions := make([]r2.Point, 0, len(c.Population()))
		for _, a := range c.Population() {
			positions = append(positions, a.Position)
		}
		return positions, rec
	}

	seqPositions, seqRecord := run(1)
	parPositions, parRecord := run(6)
	if seqRecord != parRecord {
		t.Fatalf("records differ: %+v vs %+v", seqRecord, parRecord)
	}
	for i := range seqPositions {
		if seqPositions[i] != parPositions[i] {
			t.Fatalf("agent %d position differs: %+v vs %+v", i, seqPositions[i], parPositions[i])
		}
	}
}

func TestMutatedInitialSpeedSeedsNextGenerationVelocity(t *testing.T) {
	cfg := newTestConfig(t, 3)
	cfg.MutationRate = 1
	cfg.VariancePercentage = 50
	cfg.MutationFields = []agent.Field{agent.FieldInitialXSpeed, agent.FieldInitialYSpeed}
	c := newTestController(t, cfg)

	if _, err := c.RunGeneration(context.Background()); err != nil {
		t.Fatalf("generation 1: %v", err)
	}
	next := c.NextGeneration()
	if err := c.Start(); err != nil {
		t.Fatalf("start generation 2: %v", err)
	}

	population := c.Population()
	if len(population) != len(next) {
		t.Fatalf("expected %d agents, got %d", len(next), len(population))
	}
	for i, a := range population {
		if a != next[i] {
			t.Fatalf("agent %d is not the mutated child prepared in Done", i)
		}
		want := r2.Point{X: a.Genome.InitialXSpeed, Y: a.Genome.InitialYSpeed}
		if a.Velocity != want {
			t.Fatalf("agent %d: velocity %v, genome initial speed %v", i, a.Velocity, want)
		}
		if a.Position != cfg.Start || a.Dead || a.Lifespan != 0 {
			t.Fatalf("agent %d not reset for its life: %+v", i, a)
		}
	}
}

func TestControllerResumesFromSeedGenomes(t *testing.T) {
	cfg := newTestConfig(t, 5)
	cfg.Sampler = nil
	cfg.Seed = []agent.Genome{
		{ForceCoefficient: 10, XSpeedLimit: 8, YSpeedLimit: 8, RadarStrength: 50, InitialXSpeed: 2},
		{ForceCoefficient: 20, XSpeedLimit: 9, YSpeedLimit: 9, RadarStrength: 60, InitialXSpeed: 3},
	}
	cfg.FirstGeneration = 12
	c := newTestController(t, cfg)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.Generation() != 12 {
		t.Fatalf("expected generation 12, got %d", c.Generation())
	}
	for i, a := range c.Population() {
		if a.Genome != cfg.Seed[i%2] {
			t.Fatalf("agent %d genome not seeded: %+v", i, a.Genome)
		}
	}
}

func TestRunGenerationHonoursCancellationOnlyBeforeStart(t *testing.T) {
	c := newTestController(t, newTestConfig(t, 9))
	first, err := c.RunGeneration(context.Background())
	if err != nil {
		t.Fatalf("run generation: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec, err := c.RunGeneration(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rec != first || c.State() != StateDone || c.Generation() != 1 {
		t.Fatalf("expected last generation intact, got state=%s generation=%d", c.State(), c.Generation())
	}
}

func TestSnapshot(t *testing.T) {
	cfg := newTestConfig(t, 2)
	c := newTestController(t, cfg)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	f := c.Snapshot()
	if f.Generation != 1 || f.Tick != 1 || len(f.Agents) != 4 {
		t.Fatalf("unexpected frame: generation=%d tick=%d agents=%d", f.Generation, f.Tick, len(f.Agents))
	}
	if f.Inner != cfg.Box.InnerRect() || f.GoalSide != boundary.SideRight {
		t.Fatalf("unexpected frame box: %+v", f.Inner)
	}
	for i, view := range f.Agents {
		if view.Position != c.Population()[i].Position || view.Radius != 16 {
			t.Fatalf("agent view %d does not match agent", i)
		}
	}
}

func TestRecordSuccessRate(t *testing.T) {
	if got := (Record{GoalReachedCount: 3, PopulationSize: 12}).SuccessRate(); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
	if got := (Record{}).SuccessRate(); got != 0 {
		t.Fatalf("expected 0 for empty record, got %v", got)
	}
}

func TestNewControllerValidation(t *testing.T) {
	cases := map[string]func(*Config){
		"missing box":      func(c *Config) { c.Box = nil },
		"missing grid":     func(c *Config) { c.Grid = nil },
		"empty population": func(c *Config) { c.PopulationSize = 0 },
		"zero radius":      func(c *Config) { c.Radius = 0 },
		"no genomes":       func(c *Config) { c.Sampler = nil },
		"no rand":          func(c *Config) { c.Rand = nil },
		"no clock":         func(c *Config) { c.Clock = nil },
		"bad rate":         func(c *Config) { c.MutationRate = 2 },
	}
	for name, mutate := range cases {
		cfg := newTestConfig(t, 1)
		mutate(&cfg)
		if _, err := NewController(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
