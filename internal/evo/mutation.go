package evo

import (
	"particles/internal/agent"
)

const (
	DefaultMutationRate       = 0.05
	DefaultVariancePercentage = 8.0
)

// DefaultMutationFields are the fields perturbed unless configured otherwise.
// Radar strength is inherited through crossover only.
var DefaultMutationFields = []agent.Field{
	agent.FieldInitialXSpeed,
	agent.FieldInitialYSpeed,
	agent.FieldXSpeedLimit,
	agent.FieldYSpeedLimit,
	agent.FieldForce,
	agent.FieldStability,
	agent.FieldRandom,
	agent.FieldForward,
}

// Mutate perturbs each field with probability rate by a uniform amount in
// [-v, +v] where v is variancePercentage percent of the current value. It
// reports how many fields were touched.
func Mutate(rng agent.Rand, g *agent.Genome, fields []agent.Field, rate, variancePercentage float64) int {
	mutated := 0
	for _, f := range fields {
		if rng.Float64() >= rate {
			continue
		}
		value := g.Get(f)
		variance := variancePercentage / 100 * value
		g.Set(f, value+rng.Float64()*2*variance-variance)
		mutated++
	}
	return mutated
}

// MutatePopulation applies Mutate to every agent's genome in order.
func MutatePopulation(rng agent.Rand, population []*agent.Agent, fields []agent.Field, rate, variancePercentage float64) int {
	mutated := 0
	for _, a := range population {
		mutated += Mutate(rng, &a.Genome, fields, rate, variancePercentage)
	}
	return mutated
}
