package evo

import (
	"errors"
	"fmt"
	"time"

	"particles/internal/agent"
)

var (
	ErrZeroDuration    = errors.New("generation duration must be > 0")
	ErrZeroLifespan    = errors.New("goal reached with zero lifespan")
	ErrEmptyPopulation = errors.New("population is empty")
)

// Weights scale the fitness terms.
type Weights struct {
	Completion         float64 `yaml:"completion" json:"completion"`
	CompletionPosition float64 `yaml:"completion_position" json:"completion_position"`
	XPosition          float64 `yaml:"x_position" json:"x_position"`
	Avoidance          float64 `yaml:"avoidance" json:"avoidance"`
}

func DefaultWeights() Weights {
	return Weights{
		Completion:         3,
		CompletionPosition: 4,
		XPosition:          3,
		Avoidance:          1.5,
	}
}

// Fitness scores a finished agent. Forward progress and avoided walls always
// count; reaching the goal adds a bonus for speed and for hitting the goal
// edge high up.
func Fitness(a *agent.Agent, generation time.Duration, width, height float64, w Weights) (float64, error) {
	if generation <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrZeroDuration, generation)
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("plane size must be > 0: %vx%v", width, height)
	}

	fitness := a.Position.X/width*w.XPosition + float64(a.WallsAvoided)*w.Avoidance
	if !a.GoalReached {
		return fitness, nil
	}

	fraction := a.Lifespan.Seconds() / generation.Seconds()
	if fraction == 0 {
		return 0, fmt.Errorf("%w: agent %d", ErrZeroLifespan, a.ID)
	}
	fitness += 1/fraction*w.Completion + (1-a.Position.Y/height)*w.CompletionPosition
	return fitness, nil
}
