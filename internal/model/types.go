package model

import (
	"time"

	"particles/internal/agent"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one simulation run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Seed           int64     `json:"seed"`
	PopulationSize int       `json:"population_size"`
	// ResumedFrom names the run whose population seeded this one.
	ResumedFrom string `json:"resumed_from,omitempty"`
	// Config is the effective YAML configuration of the run.
	Config      string  `json:"config"`
	Generations int     `json:"generations"`
	BestFitness float64 `json:"best_fitness"`
	GoalReached int     `json:"goal_reached"`
}

type GenerationRecord struct {
	VersionedRecord
	RunID            string        `json:"run_id"`
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

func (g GenerationRecord) SuccessRate() float64 {
	if g.PopulationSize == 0 {
		return 0
	}
	return float64(g.GoalReachedCount) / float64(g.PopulationSize)
}

// PopulationSnapshot stores a finished generation's members so a later run
// can resume from their genomes.
type PopulationSnapshot struct {
	VersionedRecord
	ID         string             `json:"id"`
	RunID      string             `json:"run_id"`
	Generation int                `json:"generation"`
	Members    []PopulationMember `json:"members"`
}

type PopulationMember struct {
	Genome       agent.Genome  `json:"genome"`
	Fitness      float64       `json:"fitness"`
	Lifespan     time.Duration `json:"lifespan"`
	WallsAvoided int           `json:"walls_avoided"`
	GoalReached  bool          `json:"goal_reached"`
	Side         string        `json:"side"`
}

func (p PopulationSnapshot) Genomes() []agent.Genome {
	genomes := make([]agent.Genome, len(p.Members))
	for i, m := range p.Members {
		genomes[i] = m.Genome
	}
	return genomes
}
