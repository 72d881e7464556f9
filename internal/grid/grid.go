package grid

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// NoCell marks an agent that has not visited any cell yet.
const NoCell = -1

// Grid partitions the plane into equally sized cells numbered row-major.
// It holds no mutable state and is safe for concurrent reads.
type Grid struct {
	cellWidth  float64
	cellHeight float64
	columns    int
	rows       int
}

// New builds a grid over a width x height plane. A zero cell height makes
// each column a single full-height cell.
func New(width, height, cellWidth, cellHeight float64) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid plane size must be > 0: %vx%v", width, height)
	}
	if cellWidth <= 0 {
		return nil, fmt.Errorf("grid cell width must be > 0")
	}
	if cellHeight <= 0 {
		cellHeight = height
	}
	return &Grid{
		cellWidth:  cellWidth,
		cellHeight: cellHeight,
		columns:    int(math.Ceil(width / cellWidth)),
		rows:       int(math.Ceil(height / cellHeight)),
	}, nil
}

func (g *Grid) Columns() int { return g.columns }
func (g *Grid) Rows() int    { return g.rows }
func (g *Grid) Len() int     { return g.columns * g.rows }

// CellID returns the id of the cell containing p. Positions off the plane
// clamp to the nearest edge cell.
func (g *Grid) CellID(p r2.Point) int {
	col := clampIndex(int(math.Floor(p.X/g.cellWidth)), g.columns)
	row := clampIndex(int(math.Floor(p.Y/g.cellHeight)), g.rows)
	return row*g.columns + col
}

// CellCenter returns the midpoint of a cell.
func (g *Grid) CellCenter(id int) (r2.Point, bool) {
	if id < 0 || id >= g.Len() {
		return r2.Point{}, false
	}
	col := id % g.columns
	row := id / g.columns
	return r2.Point{
		X: (float64(col) + 0.5) * g.cellWidth,
		Y: (float64(row) + 0.5) * g.cellHeight,
	}, true
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
