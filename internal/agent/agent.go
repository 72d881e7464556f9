package agent

import (
	"math"
	"time"

	"github.com/golang/geo/r2"

	"particles/internal/boundary"
	"particles/internal/geom"
	"particles/internal/grid"
	"particles/internal/radar"
)

// Environment is the read-only world an agent moves through. It is shared by
// every agent of a generation.
type Environment struct {
	Box    *boundary.Box
	Grid   *grid.Grid
	Width  float64
	Height float64
}

// Forces holds the repulsion and jitter terms computed on the last tick.
type Forces struct {
	Left, Right, Top, Bottom float64
	XDir, YDir               float64
}

// Agent is one evolving individual.
type Agent struct {
	ID       int
	Genome   Genome
	Position r2.Point
	Velocity r2.Point
	Radius   float64

	Birth          time.Time
	Lifespan       time.Duration
	ParentLifespan time.Duration
	WallsAvoided   int
	LastCellID     int
	Fitness        float64

	Dead        bool
	Hit         *boundary.Hit
	GoalReached bool

	Forces        Forces
	ProximityHits []radar.ProximityHit
}

// New creates an agent at start with velocity seeded from the genome.
func New(id int, genome Genome, start r2.Point, radius float64) *Agent {
	a := &Agent{
		ID:     id,
		Genome: genome,
		Radius: radius,
	}
	a.Reset(start)
	return a
}

// Reset puts the agent back at start with the velocity its genome carries
// and clears everything the previous life recorded.
func (a *Agent) Reset(start r2.Point) {
	a.Position = start
	a.Velocity = r2.Point{X: a.Genome.InitialXSpeed, Y: a.Genome.InitialYSpeed}
	a.Lifespan = 0
	a.WallsAvoided = 0
	a.LastCellID = grid.NoCell
	a.Fitness = 0
	a.Dead = false
	a.Hit = nil
	a.GoalReached = false
	a.Forces = Forces{}
	a.ProximityHits = nil
}

// StartLife stamps the birth time and clears the lifespan.
func (a *Agent) StartLife(birth time.Time) *Agent {
	a.Birth = birth
	a.Lifespan = 0
	return a
}

// UpdateLifespan records elapsed time since birth while the agent is alive.
func (a *Agent) UpdateLifespan(now time.Time) {
	if a.Dead || a.Birth.IsZero() {
		return
	}
	a.Lifespan = now.Sub(a.Birth)
}

// Direction is the current heading derived from velocity.
func (a *Agent) Direction() float64 {
	return geom.Direction(a.Velocity)
}

// Kill marks the agent dead. Position and velocity stay frozen afterwards.
func (a *Agent) Kill(hit boundary.Hit, goal boundary.Side) {
	a.Dead = true
	a.Hit = &hit
	if hit.Side == goal {
		a.GoalReached = true
	}
}

// Step advances a live agent by one tick. Dead agents are left untouched.
func (a *Agent) Step(env Environment, rng Rand) {
	if a.Dead {
		return
	}
	g := a.Genome

	a.ProximityHits = radar.Sense(a.Position, a.Direction(), a.Radius, g.RadarStrength, env.Box)

	var f Forces
	if len(a.ProximityHits) > 0 {
		nearest := a.ProximityHits[0]
		inverse := 1 - nearest.Distance/radar.MaxDistance
		x, y := a.Position.X, a.Position.Y
		f.Left = g.ForwardCoefficient * (g.ForceCoefficient / x) * inverse
		f.Right = g.ForwardCoefficient * (g.ForceCoefficient / (env.Width - x)) * inverse
		f.Top = g.ForwardCoefficient * (g.ForceCoefficient / y) * inverse
		f.Bottom = g.ForwardCoefficient * (g.ForceCoefficient / (y - env.Height)) * inverse
		a.WallsAvoided++
	}

	cell := env.Grid.CellID(a.Position)
	if a.LastCellID != grid.NoCell && cell != a.LastCellID {
		f.Right += g.ForwardCoefficient
		f.Left -= g.ForwardCoefficient
	}

	f.XDir = (g.StabilityCoefficient - rng.Float64()) * g.RandomCoefficient * rng.Float64()
	f.YDir = (g.StabilityCoefficient - rng.Float64()) * g.RandomCoefficient * rng.Float64()
	a.Forces = f

	a.Velocity.X = limitSpeed(a.Velocity.X+f.Left+f.Right-f.XDir, g.XSpeedLimit)
	a.Velocity.Y = limitSpeed(a.Velocity.Y+f.Top+f.Bottom-f.YDir, g.YSpeedLimit)

	draft := a.Position.Add(a.Velocity)
	if hit, ok := env.Box.TestHit(draft, a.Radius); ok {
		draft = hit.Position
		a.Kill(hit, env.Box.GoalSide())
	}
	a.Position = draft
	a.LastCellID = cell
}

// limitSpeed rescales speed to the limit, keeping its sign, once it exceeds
// the limit in magnitude.
func limitSpeed(speed, limit float64) float64 {
	if math.Abs(speed) > limit {
		return limit * math.Copysign(1, speed)
	}
	return speed
}
