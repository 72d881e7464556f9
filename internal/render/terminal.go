package render

import (
	"context"
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/golang/geo/r2"

	"particles/internal/boundary"
	"particles/internal/sim"
)

const (
	runeAlive = '●'
	runeDead  = '·'
	runeGoal  = '★'
	runeWall  = '█'
	runeRadar = '+'
)

var (
	wallStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	goalStyle   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	radarStyle  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

// Terminal draws frames onto a tcell screen, scaling the plane to the
// screen and keeping the bottom row for a status line.
type Terminal struct {
	screen tcell.Screen
	// ShowRadar marks the positions of the last tick's radar hits.
	ShowRadar bool
}

// NewTerminal takes ownership of screen. A nil screen opens the controlling
// terminal.
func NewTerminal(screen tcell.Screen) (*Terminal, error) {
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("open terminal: %w", err)
		}
		screen = s
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	screen.HideCursor()
	screen.Clear()
	return &Terminal{screen: screen}, nil
}

func (t *Terminal) Render(f sim.Frame) error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame plane size must be > 0: %vx%v", f.Width, f.Height)
	}
	cols, rows := t.screen.Size()
	if cols < 2 || rows < 2 {
		return nil
	}
	v := viewport{cols: cols, rows: rows - 1, width: f.Width, height: f.Height}

	t.screen.Clear()
	t.drawWalls(v, f)
	for _, a := range f.Agents {
		if t.ShowRadar && !a.Dead {
			for _, hit := range a.Hits {
				for _, ray := range hit.Rays {
					x, y := v.cell(ray.Position)
					t.screen.SetContent(x, y, runeRadar, nil, radarStyle)
				}
			}
		}
		x, y := v.cell(a.Position)
		r := runeAlive
		switch {
		case a.GoalReached:
			r = runeGoal
		case a.Dead:
			r = runeDead
		}
		t.screen.SetContent(x, y, r, nil, agentStyle(a))
	}
	t.drawStatus(cols, rows-1, f)
	t.screen.Show()
	return nil
}

func (t *Terminal) drawWalls(v viewport, f sim.Frame) {
	inner := f.Inner
	left, top := v.cell(r2.Point{X: inner.X.Lo, Y: inner.Y.Lo})
	right, bottom := v.cell(r2.Point{X: inner.X.Hi, Y: inner.Y.Hi})
	for x := 0; x < v.cols; x++ {
		for y := 0; y < v.rows; y++ {
			if x > left && x < right && y > top && y < bottom {
				continue
			}
			style := wallStyle
			if onGoalSide(f.GoalSide, x, y, left, top, right, bottom) {
				style = goalStyle
			}
			t.screen.SetContent(x, y, runeWall, nil, style)
		}
	}
}

func onGoalSide(side boundary.Side, x, y, left, top, right, bottom int) bool {
	switch side {
	case boundary.SideRight:
		return x >= right && y > top && y < bottom
	case boundary.SideLeft:
		return x <= left && y > top && y < bottom
	case boundary.SideTop:
		return y <= top && x > left && x < right
	case boundary.SideBottom:
		return y >= bottom && x > left && x < right
	}
	return false
}

func (t *Terminal) drawStatus(cols, row int, f sim.Frame) {
	status := fmt.Sprintf(" generation %d  tick %d  alive %d/%d  %s ", f.Generation, f.Tick, f.Alive(), len(f.Agents), f.State)
	x := 0
	for _, r := range status {
		if x >= cols {
			break
		}
		t.screen.SetContent(x, row, r, nil, statusStyle)
		x++
	}
	for ; x < cols; x++ {
		t.screen.SetContent(x, row, ' ', nil, statusStyle)
	}
}

// Keys delivers key presses until ctx ends. Space and Enter call onStart;
// q, Escape and Ctrl-C call onQuit.
func (t *Terminal) Keys(ctx context.Context, onStart, onQuit func()) {
	go func() {
		<-ctx.Done()
		_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()
	for {
		ev := t.screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return
		}
		key, ok := ev.(*tcell.EventKey)
		if !ok {
			continue
		}
		switch {
		case key.Key() == tcell.KeyEscape || key.Key() == tcell.KeyCtrlC ||
			(key.Key() == tcell.KeyRune && key.Rune() == 'q'):
			if onQuit != nil {
				onQuit()
			}
			return
		case key.Key() == tcell.KeyEnter || (key.Key() == tcell.KeyRune && key.Rune() == ' '):
			if onStart != nil {
				onStart()
			}
		}
	}
}

func (t *Terminal) Close() {
	t.screen.Fini()
}

func agentStyle(a sim.AgentView) tcell.Style {
	style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(a.Fill.R), int32(a.Fill.G), int32(a.Fill.B)))
	if a.Fill.A < 0.5 {
		style = style.Dim(true)
	}
	return style
}

type viewport struct {
	cols, rows    int
	width, height float64
}

// cell maps a plane position to a screen cell, clamped to the viewport.
func (v viewport) cell(p r2.Point) (int, int) {
	x := int(math.Floor(p.X / v.width * float64(v.cols)))
	y := int(math.Floor(p.Y / v.height * float64(v.rows)))
	return clamp(x, v.cols-1), clamp(y, v.rows-1)
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
