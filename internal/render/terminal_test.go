package render

import (
	"context"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/golang/geo/r2"

	"particles/internal/agent"
	"particles/internal/boundary"
	"particles/internal/sim"
)

func newSimulationTerminal(t *testing.T, cols, rows int) (*Terminal, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	term, err := NewTerminal(screen)
	if err != nil {
		t.Fatalf("new terminal: %v", err)
	}
	screen.SetSize(cols, rows)
	t.Cleanup(term.Close)
	return term, screen
}

func testFrame() sim.Frame {
	return sim.Frame{
		Generation: 3,
		Tick:       42,
		State:      sim.StateRun,
		Width:      1600,
		Height:     600,
		Inner:      r2.RectFromPoints(r2.Point{X: 55, Y: 95}, r2.Point{X: 1545, Y: 505}),
		GoalSide:   boundary.SideRight,
		Agents: []sim.AgentView{
			{ID: 0, Position: r2.Point{X: 800, Y: 300}, Radius: 16, Fill: agent.RGBA{R: 255, G: 255, B: 255, A: 1}},
			{ID: 1, Position: r2.Point{X: 400, Y: 300}, Radius: 16, Dead: true, Fill: agent.RGBA{R: 255, G: 255, B: 255, A: 0.1}},
			{ID: 2, Position: r2.Point{X: 1200, Y: 300}, Radius: 16, Dead: true, GoalReached: true, Fill: agent.RGBA{G: 255, A: 1}},
		},
	}
}

func TestTerminalDrawsAgentsAndStatus(t *testing.T) {
	term, screen := newSimulationTerminal(t, 80, 25)
	if err := term.Render(testFrame()); err != nil {
		t.Fatalf("render: %v", err)
	}

	// 24 drawable rows: y=300 maps to row 12, x=800 to column 40.
	cases := []struct {
		x, y int
		want rune
	}{
		{40, 12, runeAlive},
		{20, 12, runeDead},
		{60, 12, runeGoal},
		{0, 0, runeWall},
		{79, 12, runeWall},
	}
	for _, tc := range cases {
		got, _, _, _ := screen.GetContent(tc.x, tc.y)
		if got != tc.want {
			t.Fatalf("cell (%d,%d): got %q want %q", tc.x, tc.y, got, tc.want)
		}
	}

	_, _, style, _ := screen.GetContent(79, 12)
	if fg, _, _ := style.Decompose(); fg != tcell.ColorGreen {
		t.Fatalf("expected goal wall to be green, got %v", fg)
	}

	status := ""
	for x := 0; x < 12; x++ {
		r, _, _, _ := screen.GetContent(x, 24)
		status += string(r)
	}
	if status != " generation " {
		t.Fatalf("unexpected status line prefix: %q", status)
	}
}

func TestTerminalRejectsEmptyPlane(t *testing.T) {
	term, _ := newSimulationTerminal(t, 80, 25)
	if err := term.Render(sim.Frame{}); err == nil {
		t.Fatal("expected error for zero plane")
	}
}

func TestTerminalKeys(t *testing.T) {
	term, screen := newSimulationTerminal(t, 80, 25)
	starts := 0
	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		term.Keys(context.Background(), func() { starts++ }, func() { close(quit) })
	}()

	screen.InjectKey(tcell.KeyRune, ' ', tcell.ModNone)
	screen.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("key loop did not stop on q")
	}
	select {
	case <-quit:
	default:
		t.Fatal("expected quit callback")
	}
	if starts != 2 {
		t.Fatalf("expected 2 start signals, got %d", starts)
	}
}

func TestTerminalKeysStopOnCancel(t *testing.T) {
	term, _ := newSimulationTerminal(t, 80, 25)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		term.Keys(ctx, nil, nil)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("key loop did not stop on cancel")
	}
}
