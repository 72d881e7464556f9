package boundary

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// DefaultPadding keeps agents a few units off the painted wall.
const DefaultPadding = 5.0

type Side string

const (
	SideTop               Side = "top"
	SideRight             Side = "right"
	SideBottom            Side = "bottom"
	SideLeft              Side = "left"
	SideTopRightCorner    Side = "top-right-corner"
	SideBottomRightCorner Side = "bottom-right-corner"
	SideBottomLeftCorner  Side = "bottom-left-corner"
	SideTopLeftCorner     Side = "top-left-corner"
	// SideTimeout is not a wall; it marks agents stopped by the tick limit.
	SideTimeout Side = "timeout"
)

// Segment is one wall of the box: a line with a thickness centered on it.
type Segment struct {
	Start     r2.Point
	End       r2.Point
	Thickness float64
}

// Hit describes the wall an agent ran into and where it was put back.
type Hit struct {
	Side     Side
	Position r2.Point
}

type Config struct {
	Width               float64
	Height              float64
	Thickness           float64
	HorizontalThickness float64
	Padding             float64
	GoalSide            Side
}

// Box is the enclosing boundary. It is immutable once built.
type Box struct {
	Top    Segment
	Right  Segment
	Bottom Segment
	Left   Segment

	goal  Side
	inner edges
	outer edges
}

type edges struct {
	top, right, bottom, left float64
}

func NewBox(cfg Config) (*Box, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("plane size must be > 0: %vx%v", cfg.Width, cfg.Height)
	}
	if cfg.Thickness < 0 || cfg.HorizontalThickness < 0 {
		return nil, fmt.Errorf("boundary thickness must be >= 0")
	}
	if cfg.GoalSide == "" {
		cfg.GoalSide = SideRight
	}
	w, h := cfg.Width, cfg.Height
	b := &Box{
		Top:    Segment{Start: r2.Point{X: 0, Y: 0}, End: r2.Point{X: w, Y: 0}, Thickness: cfg.HorizontalThickness},
		Right:  Segment{Start: r2.Point{X: w, Y: 0}, End: r2.Point{X: w, Y: h}, Thickness: cfg.Thickness},
		Bottom: Segment{Start: r2.Point{X: 0, Y: h}, End: r2.Point{X: w, Y: h}, Thickness: cfg.HorizontalThickness},
		Left:   Segment{Start: r2.Point{X: 0, Y: 0}, End: r2.Point{X: 0, Y: h}, Thickness: cfg.Thickness},
		goal:   cfg.GoalSide,
	}
	pad := cfg.Padding
	b.outer = edges{
		top:    b.Top.Start.Y + pad,
		right:  b.Right.Start.X - pad,
		bottom: b.Bottom.Start.Y - pad,
		left:   b.Left.Start.X + pad,
	}
	b.inner = edges{
		top:    b.Top.Start.Y + b.Top.Thickness/2 - pad,
		right:  b.Right.Start.X - b.Right.Thickness/2 + pad,
		bottom: b.Bottom.Start.Y - b.Bottom.Thickness/2 + pad,
		left:   b.Left.Start.X + b.Left.Thickness/2 - pad,
	}
	if b.inner.left >= b.inner.right || b.inner.top >= b.inner.bottom {
		return nil, fmt.Errorf("boundary thickness leaves no room inside a %vx%v plane", w, h)
	}
	return b, nil
}

func (b *Box) GoalSide() Side {
	return b.goal
}

// InnerRect is the free area agents may occupy.
func (b *Box) InnerRect() r2.Rect {
	return r2.RectFromPoints(
		r2.Point{X: b.inner.left, Y: b.inner.top},
		r2.Point{X: b.inner.right, Y: b.inner.bottom},
	)
}

// OuterRect bounds the visible wall band.
func (b *Box) OuterRect() r2.Rect {
	return r2.RectFromPoints(
		r2.Point{X: b.outer.left, Y: b.outer.top},
		r2.Point{X: b.outer.right, Y: b.outer.bottom},
	)
}

// InWallBand reports whether p lies on a wall: inside the outer edges but not
// strictly inside the inner ones.
func (b *Box) InWallBand(p r2.Point) bool {
	return b.OuterRect().ContainsPoint(p) && !b.InnerRect().InteriorContainsPoint(p)
}

// TestHit checks a circle against the inner edges, corners first so that an
// agent entering a corner gets a single resolution.
func (b *Box) TestHit(pos r2.Point, radius float64) (Hit, bool) {
	in := b.inner
	top := pos.Y - radius
	right := pos.X + radius
	bottom := pos.Y + radius
	left := pos.X - radius

	switch {
	case right >= in.right && top <= in.top:
		return Hit{Side: SideTopRightCorner, Position: r2.Point{X: in.right + radius, Y: in.top - radius}}, true
	case right >= in.right && bottom >= in.bottom:
		return Hit{Side: SideBottomRightCorner, Position: r2.Point{X: in.right + radius, Y: in.bottom + radius}}, true
	case left <= in.left && bottom >= in.bottom:
		return Hit{Side: SideBottomLeftCorner, Position: r2.Point{X: in.left - radius, Y: in.bottom + radius}}, true
	case left <= in.left && top <= in.top:
		return Hit{Side: SideTopLeftCorner, Position: r2.Point{X: in.left - radius, Y: in.top - radius}}, true
	case top <= in.top:
		return Hit{Side: SideTop, Position: r2.Point{X: pos.X, Y: in.top - radius}}, true
	case right >= in.right:
		return Hit{Side: SideRight, Position: r2.Point{X: in.right + radius, Y: pos.Y}}, true
	case bottom >= in.bottom:
		return Hit{Side: SideBottom, Position: r2.Point{X: pos.X, Y: in.bottom + radius}}, true
	case left <= in.left:
		return Hit{Side: SideLeft, Position: r2.Point{X: in.left - radius, Y: pos.Y}}, true
	}
	return Hit{}, false
}
