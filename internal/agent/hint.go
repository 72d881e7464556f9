package agent

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

var (
	hintWhite  = colorful.Color{R: 1, G: 1, B: 1}
	hintYellow = colorful.Color{R: 1, G: 1}
	hintGreen  = colorful.Color{G: 1}
)

// RGBA is a fill colour suggestion for renderers. A is in [0, 1].
type RGBA struct {
	R, G, B uint8
	A       float64
}

// FillHint suggests a fill colour from how long the agent has lived compared
// with its parents: faint white while below the parents' lifespan, shading
// to yellow and then green as it outlives them.
func (a *Agent) FillHint() RGBA {
	var alpha *float64
	if a.Dead {
		v := 0.1
		if a.GoalReached {
			v = 1
		}
		alpha = &v
	}

	parent := a.ParentLifespan.Seconds()
	if parent <= 0 {
		return blend(hintWhite, hintWhite, 1, orDefault(alpha, 0.2))
	}
	lifespan := a.Lifespan.Seconds()
	switch {
	case lifespan <= parent:
		return blend(hintWhite, hintWhite, 1, orDefault(alpha, 0.2+lifespan/parent*0.8))
	case lifespan > parent*2:
		excess := lifespan - parent*2
		return blend(hintYellow, hintGreen, excess/(parent*2), orDefault(alpha, 1))
	default:
		excess := lifespan - parent
		return blend(hintWhite, hintYellow, excess/parent, orDefault(alpha, 1))
	}
}

func blend(from, to colorful.Color, t, alpha float64) RGBA {
	c := from.BlendRgb(to, clamp01(t))
	r, g, b := c.Clamped().RGB255()
	return RGBA{R: r, G: g, B: b, A: clamp01(alpha)}
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
