package sim

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidEvent = errors.New("event not allowed in current state")
	ErrHalted       = errors.New("controller halted")
)

// ControllerMisuseError reports a lifecycle violation that leaves the
// controller unable to score a generation.
type ControllerMisuseError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ControllerMisuseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("controller misuse in %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("controller misuse in %s: %s", e.Op, e.Reason)
}

func (e *ControllerMisuseError) Unwrap() error {
	return e.Err
}

// Record summarises one finished generation.
type Record struct {
	Index            int           `json:"index"`
	StartTime        time.Time     `json:"start_time"`
	Duration         time.Duration `json:"duration"`
	GoalReachedCount int           `json:"goal_reached_count"`
	PopulationSize   int           `json:"population_size"`
	Ticks            int           `json:"ticks"`
	BestFitness      float64       `json:"best_fitness"`
	MeanFitness      float64       `json:"mean_fitness"`
	StdDevFitness    float64       `json:"stddev_fitness"`
}

func (r Record) SuccessRate() float64 {
	if r.PopulationSize == 0 {
		return 0
	}
	return float64(r.GoalReachedCount) / float64(r.PopulationSize)
}
