package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"particles/internal/agent"
	"particles/internal/evo"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Plane      PlaneConfig             `yaml:"plane"`
	Boundary   BoundaryConfig          `yaml:"boundary"`
	Grid       GridConfig              `yaml:"grid"`
	Population PopulationConfig        `yaml:"population"`
	Genome     map[string]Distribution `yaml:"genome"`
	Selection  SelectionConfig         `yaml:"selection"`
	Mutation   MutationConfig          `yaml:"mutation"`
	Fitness    evo.Weights             `yaml:"fitness"`
	Simulation SimulationConfig        `yaml:"simulation"`
}

type PlaneConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type BoundaryConfig struct {
	Thickness           float64 `yaml:"thickness"`            // left and right walls
	HorizontalThickness float64 `yaml:"horizontal_thickness"` // top and bottom walls
	Padding             float64 `yaml:"padding"`
	GoalSide            string  `yaml:"goal_side"`
}

type GridConfig struct {
	CellWidth  float64 `yaml:"cell_width"`
	CellHeight float64 `yaml:"cell_height"`
}

type PopulationConfig struct {
	Size int `yaml:"size"`
	// Start position as fractions of the plane.
	StartX float64 `yaml:"start_x"`
	StartY float64 `yaml:"start_y"`
	Radius float64 `yaml:"radius"`
}

type SelectionConfig struct {
	Method         string `yaml:"method"`
	TournamentSize int    `yaml:"tournament_size"`
}

type MutationConfig struct {
	Rate               float64  `yaml:"rate"`
	VariancePercentage float64  `yaml:"variance_percentage"`
	Fields             []string `yaml:"fields"`
}

type SimulationConfig struct {
	Clock       string        `yaml:"clock"` // sim or wall
	TickCadence time.Duration `yaml:"tick_cadence"`
	MaxTicks    int           `yaml:"max_ticks"`
	Workers     int           `yaml:"workers"`
	Seed        int64         `yaml:"seed"`
	Generations int           `yaml:"generations"` // 0 runs until cancelled
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	return Parse(nil)
}

// Parse merges data over the embedded defaults and validates the result.
// Keys absent from data keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a YAML file over the embedded defaults. An empty path loads the
// defaults only.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// DefaultsYAML returns the embedded default configuration document.
func DefaultsYAML() []byte {
	out := make([]byte, len(defaultsYAML))
	copy(out, defaultsYAML)
	return out
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if c.Plane.Width <= 0 || c.Plane.Height <= 0 {
		return invalid("plane size must be > 0, got %vx%v", c.Plane.Width, c.Plane.Height)
	}
	if c.Boundary.Thickness < 0 || c.Boundary.HorizontalThickness < 0 || c.Boundary.Padding < 0 {
		return invalid("boundary thickness and padding must be >= 0")
	}
	switch c.Boundary.GoalSide {
	case "", "top", "right", "bottom", "left":
	default:
		return invalid("boundary.goal_side %q is not a side", c.Boundary.GoalSide)
	}
	if c.Grid.CellWidth <= 0 || c.Grid.CellHeight < 0 {
		return invalid("grid.cell_width must be > 0 and grid.cell_height >= 0")
	}
	if c.Population.Size <= 0 {
		return invalid("population.size must be > 0")
	}
	if c.Population.StartX < 0 || c.Population.StartX > 1 || c.Population.StartY < 0 || c.Population.StartY > 1 {
		return invalid("population start must be plane fractions in [0, 1]")
	}
	if c.Population.Radius <= 0 {
		return invalid("population.radius must be > 0")
	}
	for _, field := range agent.Fields {
		d, ok := c.Genome[field.String()]
		if !ok {
			return invalid("genome.%s distribution is missing", field)
		}
		if err := d.Validate(); err != nil {
			return invalid("genome.%s: %v", field, err)
		}
	}
	for name := range c.Genome {
		if _, err := agent.ParseField(name); err != nil {
			return invalid("genome: %v", err)
		}
	}
	if _, err := c.Selector(); err != nil {
		return invalid("selection: %v", err)
	}
	if c.Mutation.Rate < 0 || c.Mutation.Rate > 1 {
		return invalid("mutation.rate must be in [0, 1], got %v", c.Mutation.Rate)
	}
	if c.Mutation.VariancePercentage < 0 {
		return invalid("mutation.variance_percentage must be >= 0")
	}
	if _, err := agent.ParseFields(c.Mutation.Fields); err != nil {
		return invalid("mutation.fields: %v", err)
	}
	switch c.Simulation.Clock {
	case "sim", "wall":
	default:
		return invalid("simulation.clock must be sim or wall, got %q", c.Simulation.Clock)
	}
	if c.Simulation.TickCadence <= 0 {
		return invalid("simulation.tick_cadence must be > 0")
	}
	if c.Simulation.MaxTicks < 0 || c.Simulation.Workers < 0 || c.Simulation.Generations < 0 {
		return invalid("simulation max_ticks, workers and generations must be >= 0")
	}
	return nil
}

// Selector resolves the configured parent selector.
func (c *Config) Selector() (evo.Selector, error) {
	sel, err := evo.ResolveSelector(c.Selection.Method)
	if err != nil {
		return nil, err
	}
	if _, ok := sel.(evo.TournamentSelector); ok {
		return evo.TournamentSelector{Size: c.Selection.TournamentSize}, nil
	}
	return sel, nil
}

func (c *Config) MutationFields() []agent.Field {
	fields, err := agent.ParseFields(c.Mutation.Fields)
	if err != nil {
		return nil
	}
	return fields
}
