package render

import "particles/internal/sim"

// Renderer draws simulation frames.
type Renderer interface {
	Render(frame sim.Frame) error
	Close()
}

// Nop discards frames.
type Nop struct{}

func (Nop) Render(sim.Frame) error { return nil }
func (Nop) Close()                 {}
