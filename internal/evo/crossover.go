package evo

import (
	"fmt"
	"time"

	"particles/internal/agent"
)

// Crossover returns the field-wise mean of both genomes.
func Crossover(a, b agent.Genome) agent.Genome {
	var child agent.Genome
	for _, f := range agent.Fields {
		child.Set(f, (a.Get(f)+b.Get(f))/2)
	}
	return child
}

// Spawn builds a newborn agent from a genome. Callers place it at the start
// position with the configured radius.
type Spawn func(id int, genome agent.Genome) *agent.Agent

// Breed builds size children. Each child crosses two parents drawn uniformly
// from the pool, possibly the same one twice, and inherits the mean of their
// lifespans as its parent lifespan.
func Breed(rng agent.Rand, parents []*agent.Agent, size int, spawn Spawn) ([]*agent.Agent, error) {
	if len(parents) == 0 {
		return nil, fmt.Errorf("breed: %w", ErrEmptyPopulation)
	}
	if spawn == nil {
		return nil, fmt.Errorf("breed: spawn function is required")
	}
	children := make([]*agent.Agent, 0, size)
	for i := 0; i < size; i++ {
		a := parents[pick(rng, len(parents))]
		b := parents[pick(rng, len(parents))]
		child := spawn(i, Crossover(a.Genome, b.Genome))
		child.ParentLifespan = (a.Lifespan + b.Lifespan) / time.Duration(2)
		children = append(children, child)
	}
	return children, nil
}
