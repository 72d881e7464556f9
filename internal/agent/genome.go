package agent

import (
	"fmt"
	"strings"
)

// Genome holds the heritable control parameters of an agent.
type Genome struct {
	ForceCoefficient     float64 `json:"force_coefficient" yaml:"force"`
	StabilityCoefficient float64 `json:"stability_coefficient" yaml:"stability"`
	RandomCoefficient    float64 `json:"random_coefficient" yaml:"random"`
	ForwardCoefficient   float64 `json:"forward_coefficient" yaml:"forward"`
	XSpeedLimit          float64 `json:"x_speed_limit" yaml:"x_speed_limit"`
	YSpeedLimit          float64 `json:"y_speed_limit" yaml:"y_speed_limit"`
	// RadarStrength is a percentage in [0, 100].
	RadarStrength float64 `json:"radar_strength" yaml:"radar_strength"`
	InitialXSpeed float64 `json:"initial_x_speed" yaml:"x_speed"`
	InitialYSpeed float64 `json:"initial_y_speed" yaml:"y_speed"`
}

// Field names one heritable genome value.
type Field int

const (
	FieldForce Field = iota
	FieldStability
	FieldRandom
	FieldForward
	FieldXSpeedLimit
	FieldYSpeedLimit
	FieldRadarStrength
	FieldInitialXSpeed
	FieldInitialYSpeed
)

// Fields lists every heritable field in declaration order.
var Fields = []Field{
	FieldForce,
	FieldStability,
	FieldRandom,
	FieldForward,
	FieldXSpeedLimit,
	FieldYSpeedLimit,
	FieldRadarStrength,
	FieldInitialXSpeed,
	FieldInitialYSpeed,
}

var fieldNames = map[Field]string{
	FieldForce:         "force",
	FieldStability:     "stability",
	FieldRandom:        "random",
	FieldForward:       "forward",
	FieldXSpeedLimit:   "x_speed_limit",
	FieldYSpeedLimit:   "y_speed_limit",
	FieldRadarStrength: "radar_strength",
	FieldInitialXSpeed: "x_speed",
	FieldInitialYSpeed: "y_speed",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// ParseField resolves a field by its configuration name.
func ParseField(name string) (Field, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	for field, candidate := range fieldNames {
		if candidate == name {
			return field, nil
		}
	}
	return 0, fmt.Errorf("unknown genome field: %q", name)
}

// ParseFields resolves a list of field names, rejecting duplicates.
func ParseFields(names []string) ([]Field, error) {
	fields := make([]Field, 0, len(names))
	seen := make(map[Field]struct{}, len(names))
	for _, name := range names {
		field, err := ParseField(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[field]; dup {
			return nil, fmt.Errorf("duplicate genome field: %q", name)
		}
		seen[field] = struct{}{}
		fields = append(fields, field)
	}
	return fields, nil
}

func (g *Genome) ptr(f Field) *float64 {
	switch f {
	case FieldForce:
		return &g.ForceCoefficient
	case FieldStability:
		return &g.StabilityCoefficient
	case FieldRandom:
		return &g.RandomCoefficient
	case FieldForward:
		return &g.ForwardCoefficient
	case FieldXSpeedLimit:
		return &g.XSpeedLimit
	case FieldYSpeedLimit:
		return &g.YSpeedLimit
	case FieldRadarStrength:
		return &g.RadarStrength
	case FieldInitialXSpeed:
		return &g.InitialXSpeed
	case FieldInitialYSpeed:
		return &g.InitialYSpeed
	}
	panic(fmt.Sprintf("agent: unknown genome field %d", int(f)))
}

func (g Genome) Get(f Field) float64 {
	return *g.ptr(f)
}

func (g *Genome) Set(f Field, v float64) {
	*g.ptr(f) = v
}

// Sampler draws a fresh genome for a generation-one agent.
type Sampler interface {
	Sample(rng Rand) Genome
}

// Rand is the uniform source agents and operators draw from.
type Rand interface {
	Float64() float64
}
