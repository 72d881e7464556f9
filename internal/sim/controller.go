package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/golang/geo/r2"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"particles/internal/agent"
	"particles/internal/boundary"
	"particles/internal/evo"
	"particles/internal/grid"
)

const DefaultMaxTicks = 6000

type Config struct {
	Box    *boundary.Box
	Grid   *grid.Grid
	Width  float64
	Height float64

	PopulationSize int
	Start          r2.Point
	Radius         float64
	Sampler        agent.Sampler
	// Seed genomes replace the sampler when resuming a stored population.
	// They are reused cyclically when fewer than PopulationSize.
	Seed            []agent.Genome
	FirstGeneration int

	Selector           evo.Selector
	MutationFields     []agent.Field
	MutationRate       float64
	VariancePercentage float64
	Weights            evo.Weights

	Clock Clock
	// MaxTicks ends a generation by timing out the agents still alive. Zero
	// disables the limit.
	MaxTicks int
	Workers  int
	Rand     *rand.Rand
	Logger   *slog.Logger

	OnTransition func(from, to State)
}

// Controller drives one population through repeated generations. It is not
// safe for concurrent use.
type Controller struct {
	cfg Config
	env agent.Environment
	rng *rand.Rand
	log *slog.Logger

	state      State
	generation int
	tick       int

	population []*agent.Agent
	next       []*agent.Agent
	parents    []*agent.Agent
	streams    []*rand.Rand

	started bool
	start   time.Time
	current Record
	record  Record
	scored  bool
	halted  error
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Box == nil {
		return nil, fmt.Errorf("boundary box is required")
	}
	if cfg.Grid == nil {
		return nil, fmt.Errorf("grid is required")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("plane size must be > 0: %vx%v", cfg.Width, cfg.Height)
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Radius <= 0 {
		return nil, fmt.Errorf("agent radius must be > 0")
	}
	if cfg.Sampler == nil && len(cfg.Seed) == 0 {
		return nil, fmt.Errorf("genome sampler or seed genomes are required")
	}
	if cfg.Rand == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.MaxTicks < 0 {
		return nil, fmt.Errorf("max ticks must be >= 0")
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0, 1]")
	}
	if cfg.VariancePercentage < 0 {
		return nil, fmt.Errorf("variance percentage must be >= 0")
	}
	if cfg.Selector == nil {
		cfg.Selector = evo.RouletteSelector{}
	}
	if cfg.MutationFields == nil {
		cfg.MutationFields = evo.DefaultMutationFields
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FirstGeneration <= 0 {
		cfg.FirstGeneration = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Controller{
		cfg: cfg,
		env: agent.Environment{
			Box:    cfg.Box,
			Grid:   cfg.Grid,
			Width:  cfg.Width,
			Height: cfg.Height,
		},
		rng:   cfg.Rand,
		log:   logger,
		state: StateUninitialized,
	}, nil
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Generation() int {
	return c.generation
}

func (c *Controller) Ticks() int {
	return c.tick
}

// Population is the active generation. Callers must treat it as read-only.
func (c *Controller) Population() []*agent.Agent {
	return c.population
}

// NextGeneration is the bred and mutated population waiting in Done.
func (c *Controller) NextGeneration() []*agent.Agent {
	return c.next
}

func (c *Controller) ParentPool() []*agent.Agent {
	return c.parents
}

// Record returns the last finished generation's record. The boolean is false
// until the first generation has been scored.
func (c *Controller) Record() (Record, bool) {
	return c.record, c.scored
}

// Start handles the external start signal. From Uninitialized it builds the
// first population; from Done it promotes the prepared next generation.
func (c *Controller) Start() error {
	if c.halted != nil {
		return c.halted
	}
	switch c.state {
	case StateUninitialized:
		if err := c.transition(StateInitialization); err != nil {
			return err
		}
		c.initialize()
	case StateDone:
		c.population = c.next
		c.next = nil
		c.parents = nil
		c.generation++
		c.beginGeneration()
	default:
		return fmt.Errorf("%w: start in state %s", ErrInvalidEvent, c.state)
	}
	return c.transition(StateRun)
}

func (c *Controller) initialize() {
	c.generation = c.cfg.FirstGeneration
	c.population = make([]*agent.Agent, c.cfg.PopulationSize)
	for i := range c.population {
		var genome agent.Genome
		if len(c.cfg.Seed) > 0 {
			genome = c.cfg.Seed[i%len(c.cfg.Seed)]
		} else {
			genome = c.cfg.Sampler.Sample(c.rng)
		}
		c.population[i] = c.spawn(i, genome)
	}
	c.streams = make([]*rand.Rand, c.cfg.PopulationSize)
	for i := range c.streams {
		c.streams[i] = rand.New(rand.NewSource(0))
	}
	c.beginGeneration()
}

func (c *Controller) beginGeneration() {
	now := c.cfg.Clock.Now()
	c.start = now
	c.started = true
	c.tick = 0
	for i, a := range c.population {
		a.Reset(c.cfg.Start)
		a.StartLife(now)
		c.streams[i].Seed(c.rng.Int63())
	}
	c.current = Record{
		Index:          c.generation,
		StartTime:      now,
		PopulationSize: len(c.population),
	}
}

func (c *Controller) spawn(id int, genome agent.Genome) *agent.Agent {
	return agent.New(id, genome, c.cfg.Start, c.cfg.Radius)
}

// Tick advances the clock and every live agent by one step. When the last
// agent dies the generation is scored and bred, and Tick returns StateDone.
func (c *Controller) Tick() (State, error) {
	if c.halted != nil {
		return c.state, c.halted
	}
	if c.state != StateRun {
		return c.state, fmt.Errorf("%w: tick in state %s", ErrInvalidEvent, c.state)
	}

	c.cfg.Clock.Advance()
	now := c.cfg.Clock.Now()
	c.tick++
	c.step(now)

	if c.cfg.MaxTicks > 0 && c.tick >= c.cfg.MaxTicks {
		c.timeout()
	}
	if !c.allDead() {
		return c.state, c.transition(StateRun)
	}
	if err := c.finish(now); err != nil {
		c.halted = fmt.Errorf("%w: %w", ErrHalted, err)
		c.log.Error("controller halted", "generation", c.generation, "state", c.state.String(), "error", err)
		return c.state, c.halted
	}
	return c.state, nil
}

func (c *Controller) step(now time.Time) {
	if c.cfg.Workers <= 1 {
		for i, a := range c.population {
			if a.Dead {
				continue
			}
			a.UpdateLifespan(now)
			a.Step(c.env, c.streams[i])
		}
		return
	}

	p := pool.New().WithMaxGoroutines(c.cfg.Workers)
	for i, a := range c.population {
		if a.Dead {
			continue
		}
		stream := c.streams[i]
		p.Go(func() {
			a.UpdateLifespan(now)
			a.Step(c.env, stream)
		})
	}
	p.Wait()
}

func (c *Controller) timeout() {
	for _, a := range c.population {
		if a.Dead {
			continue
		}
		a.Kill(boundary.Hit{Side: boundary.SideTimeout, Position: a.Position}, c.cfg.Box.GoalSide())
	}
	c.log.Warn("generation timed out", "generation", c.generation, "ticks", c.tick)
}

func (c *Controller) allDead() bool {
	for _, a := range c.population {
		if !a.Dead {
			return false
		}
	}
	return true
}

func (c *Controller) finish(now time.Time) error {
	if err := c.transition(StateEvaluation); err != nil {
		return err
	}
	if err := c.evaluate(now); err != nil {
		return err
	}

	if err := c.transition(StateSelection); err != nil {
		return err
	}
	parents, err := evo.SelectParents(c.rng, c.cfg.Selector, c.population)
	if err != nil {
		return fmt.Errorf("selection: %w", err)
	}
	c.parents = parents

	if err := c.transition(StateCrossover); err != nil {
		return err
	}
	next, err := evo.Breed(c.rng, c.parents, c.cfg.PopulationSize, c.spawn)
	if err != nil {
		return fmt.Errorf("crossover: %w", err)
	}
	c.next = next

	if err := c.transition(StateMutation); err != nil {
		return err
	}
	mutated := evo.MutatePopulation(c.rng, c.next, c.cfg.MutationFields, c.cfg.MutationRate, c.cfg.VariancePercentage)
	c.log.Debug("next generation bred", "generation", c.generation+1, "parents", len(c.parents), "mutated_fields", mutated)

	return c.transition(StateDone)
}

func (c *Controller) evaluate(now time.Time) error {
	if !c.started {
		return &ControllerMisuseError{Op: "evaluate", Reason: "generation start time was never recorded"}
	}
	duration := now.Sub(c.start)
	if duration <= 0 {
		return &ControllerMisuseError{Op: "evaluate", Reason: fmt.Sprintf("generation duration is %v", duration)}
	}

	fitness := make([]float64, len(c.population))
	goals := 0
	for i, a := range c.population {
		score, err := evo.Fitness(a, duration, c.cfg.Width, c.cfg.Height, c.cfg.Weights)
		if err != nil {
			return &ControllerMisuseError{Op: "evaluate", Reason: fmt.Sprintf("score agent %d", a.ID), Err: err}
		}
		a.Fitness = score
		fitness[i] = score
		if a.GoalReached {
			goals++
		}
	}

	mean, std := stat.MeanStdDev(fitness, nil)
	if len(fitness) < 2 {
		std = 0
	}
	rec := c.current
	rec.Duration = duration
	rec.GoalReachedCount = goals
	rec.Ticks = c.tick
	rec.BestFitness = floats.Max(fitness)
	rec.MeanFitness = mean
	rec.StdDevFitness = std
	c.record = rec
	c.scored = true

	c.log.Info("generation finished",
		"generation", rec.Index,
		"duration", rec.Duration,
		"ticks", rec.Ticks,
		"goal_reached", rec.GoalReachedCount,
		"population", rec.PopulationSize,
		"best_fitness", rec.BestFitness,
		"mean_fitness", rec.MeanFitness,
	)
	return nil
}

func (c *Controller) transition(to State) error {
	from := c.state
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidEvent, from, to)
	}
	c.state = to
	c.log.Debug("state transition", "from", from.String(), "to", to.String(), "generation", c.generation)
	if c.cfg.OnTransition != nil {
		c.cfg.OnTransition(from, to)
	}
	return nil
}

// RunGeneration starts the next generation and ticks it to completion. The
// context is consulted only before starting; a running generation is never
// interrupted.
func (c *Controller) RunGeneration(ctx context.Context) (Record, error) {
	if c.state == StateUninitialized || c.state == StateDone {
		if err := ctx.Err(); err != nil {
			return c.record, err
		}
		if err := c.Start(); err != nil {
			return c.record, err
		}
	}
	for {
		state, err := c.Tick()
		if err != nil {
			return c.record, err
		}
		if state == StateDone {
			return c.record, nil
		}
	}
}

// Snapshot captures the population and box for rendering.
func (c *Controller) Snapshot() Frame {
	f := Frame{
		Generation: c.generation,
		Tick:       c.tick,
		State:      c.state,
		Width:      c.cfg.Width,
		Height:     c.cfg.Height,
		Inner:      c.cfg.Box.InnerRect(),
		Outer:      c.cfg.Box.OuterRect(),
		GoalSide:   c.cfg.Box.GoalSide(),
		Agents:     make([]AgentView, len(c.population)),
	}
	for i, a := range c.population {
		f.Agents[i] = AgentView{
			ID:          a.ID,
			Position:    a.Position,
			Radius:      a.Radius,
			Dead:        a.Dead,
			GoalReached: a.GoalReached,
			Fill:        a.FillHint(),
			Hits:        a.ProximityHits,
		}
	}
	return f
}
