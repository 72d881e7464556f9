package sim

import "time"

// Clock measures generation time. Advance moves it forward by one tick.
type Clock interface {
	Now() time.Time
	Advance()
}

// SimClock is a deterministic clock that advances by a fixed cadence.
type SimClock struct {
	now     time.Time
	cadence time.Duration
}

func NewSimClock(start time.Time, cadence time.Duration) *SimClock {
	return &SimClock{now: start, cadence: cadence}
}

func (c *SimClock) Now() time.Time {
	return c.now
}

func (c *SimClock) Advance() {
	c.now = c.now.Add(c.cadence)
}

// WallClock follows real time and sleeps one cadence per tick.
type WallClock struct {
	Cadence time.Duration
}

func (WallClock) Now() time.Time {
	return time.Now()
}

func (c WallClock) Advance() {
	if c.Cadence > 0 {
		time.Sleep(c.Cadence)
	}
}
