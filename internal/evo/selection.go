package evo

import (
	"fmt"
	"math"
	"sort"

	"particles/internal/agent"
)

// Selector picks one parent from a scored population.
type Selector interface {
	Name() string
	Select(rng agent.Rand, population []*agent.Agent) (*agent.Agent, error)
}

// RouletteSelector picks agents with probability proportional to fitness.
type RouletteSelector struct{}

func (RouletteSelector) Name() string {
	return "roulette"
}

// Select walks the population subtracting fitness from a draw in
// [0, total). A population with zero total fitness, or a walk that never
// reaches zero through rounding, yields the last agent.
func (RouletteSelector) Select(rng agent.Rand, population []*agent.Agent) (*agent.Agent, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return nil, ErrEmptyPopulation
	}
	last := population[len(population)-1]

	total := 0.0
	for _, a := range population {
		total += a.Fitness
	}
	if total <= 0 {
		return last, nil
	}

	draw := rng.Float64() * total
	for _, a := range population {
		draw -= a.Fitness
		if draw <= 0 {
			return a, nil
		}
	}
	return last, nil
}

// TournamentSelector samples Size agents uniformly and keeps the fittest.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Select(rng agent.Rand, population []*agent.Agent) (*agent.Agent, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return nil, ErrEmptyPopulation
	}
	size := s.Size
	if size <= 0 {
		size = 3
	}
	best := population[pick(rng, len(population))]
	for i := 1; i < size; i++ {
		candidate := population[pick(rng, len(population))]
		if candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best, nil
}

var selectors = map[string]Selector{
	RouletteSelector{}.Name():   RouletteSelector{},
	TournamentSelector{}.Name(): TournamentSelector{},
}

// ResolveSelector returns the selector registered under name.
func ResolveSelector(name string) (Selector, error) {
	s, ok := selectors[name]
	if !ok {
		return nil, fmt.Errorf("unknown selector: %q (known: %v)", name, SelectorNames())
	}
	return s, nil
}

func SelectorNames() []string {
	names := make([]string, 0, len(selectors))
	for name := range selectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParentPoolSize is a third of the population rounded up, never below one.
func ParentPoolSize(populationSize int) int {
	if populationSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(populationSize) / 3))
}

// SelectParents draws ParentPoolSize independent picks. The same agent may
// appear more than once.
func SelectParents(rng agent.Rand, sel Selector, population []*agent.Agent) ([]*agent.Agent, error) {
	if len(population) == 0 {
		return nil, ErrEmptyPopulation
	}
	parents := make([]*agent.Agent, 0, ParentPoolSize(len(population)))
	for len(parents) < cap(parents) {
		p, err := sel.Select(rng, population)
		if err != nil {
			return nil, fmt.Errorf("select parent %d: %w", len(parents), err)
		}
		parents = append(parents, p)
	}
	return parents, nil
}

// pick returns a uniform index in [0, n).
func pick(rng agent.Rand, n int) int {
	i := int(rng.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
