package config

import (
	"fmt"
	"math"

	"particles/internal/agent"
)

const (
	KindUniform  = "uniform"
	KindConstant = "constant"
	KindChoice   = "choice"
)

// Distribution describes how a generation-one genome field is drawn.
type Distribution struct {
	Kind  string  `yaml:"kind"`
	Min   float64 `yaml:"min,omitempty"`
	Max   float64 `yaml:"max,omitempty"`
	Value float64 `yaml:"value,omitempty"`
	// Step quantises uniform draws. Rounding picks nearest (default), ceil
	// or floor; a rounding mode without a step uses a step of 1.
	Step     float64   `yaml:"step,omitempty"`
	Rounding string    `yaml:"rounding,omitempty"`
	Values   []float64 `yaml:"values,omitempty"`
}

func (d Distribution) Validate() error {
	switch d.Kind {
	case KindUniform:
		if d.Max < d.Min {
			return fmt.Errorf("uniform max %v below min %v", d.Max, d.Min)
		}
		if d.Step < 0 {
			return fmt.Errorf("step must be >= 0")
		}
		switch d.Rounding {
		case "", "nearest", "ceil", "floor":
		default:
			return fmt.Errorf("unknown rounding %q", d.Rounding)
		}
	case KindConstant:
	case KindChoice:
		if len(d.Values) == 0 {
			return fmt.Errorf("choice requires values")
		}
	default:
		return fmt.Errorf("unknown distribution kind %q", d.Kind)
	}
	return nil
}

func (d Distribution) Sample(rng agent.Rand) float64 {
	switch d.Kind {
	case KindConstant:
		return d.Value
	case KindChoice:
		i := int(rng.Float64() * float64(len(d.Values)))
		if i >= len(d.Values) {
			i = len(d.Values) - 1
		}
		return d.Values[i]
	}

	v := d.Min + rng.Float64()*(d.Max-d.Min)
	step := d.Step
	if step == 0 && d.Rounding != "" {
		step = 1
	}
	if step == 0 {
		return v
	}
	switch d.Rounding {
	case "ceil":
		return math.Ceil(v/step) * step
	case "floor":
		return math.Floor(v/step) * step
	default:
		return math.Round(v/step) * step
	}
}

// GenomeSampler draws every genome field from its own distribution.
type GenomeSampler struct {
	fields []agent.Field
	dists  []Distribution
}

// Sampler builds a genome sampler from the genome distributions. Fields are
// drawn in declaration order so a seed always yields the same genomes.
func (c *Config) Sampler() (*GenomeSampler, error) {
	s := &GenomeSampler{}
	for _, field := range agent.Fields {
		d, ok := c.Genome[field.String()]
		if !ok {
			return nil, fmt.Errorf("%w: genome.%s distribution is missing", ErrInvalid, field)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%w: genome.%s: %v", ErrInvalid, field, err)
		}
		s.fields = append(s.fields, field)
		s.dists = append(s.dists, d)
	}
	return s, nil
}

func (s *GenomeSampler) Sample(rng agent.Rand) agent.Genome {
	var g agent.Genome
	for i, field := range s.fields {
		g.Set(field, s.dists[i].Sample(rng))
	}
	return g
}
