package particles

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/golang/geo/r2"

	"particles/internal/agent"
	"particles/internal/boundary"
	"particles/internal/config"
	"particles/internal/grid"
	"particles/internal/sim"
)

type controllerSetup struct {
	seed            []agent.Genome
	firstGeneration int
	logger          *slog.Logger
	onTransition    func(from, to sim.State)
}

// newController wires a controller from the typed configuration.
func newController(cfg *config.Config, setup controllerSetup) (*sim.Controller, error) {
	box, err := boundary.NewBox(boundary.Config{
		Width:               cfg.Plane.Width,
		Height:              cfg.Plane.Height,
		Thickness:           cfg.Boundary.Thickness,
		HorizontalThickness: cfg.Boundary.HorizontalThickness,
		Padding:             cfg.Boundary.Padding,
		GoalSide:            boundary.Side(cfg.Boundary.GoalSide),
	})
	if err != nil {
		return nil, fmt.Errorf("boundary: %w", err)
	}
	cells, err := grid.New(cfg.Plane.Width, cfg.Plane.Height, cfg.Grid.CellWidth, cfg.Grid.CellHeight)
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	selector, err := cfg.Selector()
	if err != nil {
		return nil, err
	}

	var sampler agent.Sampler
	if len(setup.seed) == 0 {
		s, err := cfg.Sampler()
		if err != nil {
			return nil, err
		}
		sampler = s
	}

	return sim.NewController(sim.Config{
		Box:                box,
		Grid:               cells,
		Width:              cfg.Plane.Width,
		Height:             cfg.Plane.Height,
		PopulationSize:     cfg.Population.Size,
		Start:              r2.Point{X: cfg.Population.StartX * cfg.Plane.Width, Y: cfg.Population.StartY * cfg.Plane.Height},
		Radius:             cfg.Population.Radius,
		Sampler:            sampler,
		Seed:               setup.seed,
		FirstGeneration:    setup.firstGeneration,
		Selector:           selector,
		MutationFields:     cfg.MutationFields(),
		MutationRate:       cfg.Mutation.Rate,
		VariancePercentage: cfg.Mutation.VariancePercentage,
		Weights:            cfg.Fitness,
		Clock:              newClock(cfg.Simulation),
		MaxTicks:           cfg.Simulation.MaxTicks,
		Workers:            cfg.Simulation.Workers,
		Rand:               rand.New(rand.NewSource(cfg.Simulation.Seed)),
		Logger:             setup.logger,
		OnTransition:       setup.onTransition,
	})
}

func newClock(cfg config.SimulationConfig) sim.Clock {
	if cfg.Clock == "wall" {
		return sim.WallClock{Cadence: cfg.TickCadence}
	}
	return sim.NewSimClock(time.Now().UTC(), cfg.TickCadence)
}
