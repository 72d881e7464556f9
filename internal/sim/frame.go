package sim

import (
	"github.com/golang/geo/r2"

	"particles/internal/agent"
	"particles/internal/boundary"
	"particles/internal/radar"
)

// Frame is a read-only view of the simulation for renderers.
type Frame struct {
	Generation int
	Tick       int
	State      State
	Width      float64
	Height     float64
	Inner      r2.Rect
	Outer      r2.Rect
	GoalSide   boundary.Side
	Agents     []AgentView
}

type AgentView struct {
	ID          int
	Position    r2.Point
	Radius      float64
	Dead        bool
	GoalReached bool
	Fill        agent.RGBA
	Hits        []radar.ProximityHit
}

func (f Frame) Alive() int {
	alive := 0
	for _, a := range f.Agents {
		if !a.Dead {
			alive++
		}
	}
	return alive
}
