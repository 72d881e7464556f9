package geom

import (
	"math"

	"github.com/golang/geo/r2"
)

const fullTurn = 2 * math.Pi

// NormalizeAngle maps an angle in radians into [0, 2π).
func NormalizeAngle(angle float64) float64 {
	normalized := math.Mod(angle, fullTurn)
	if normalized < 0 {
		normalized += fullTurn
	}
	return normalized
}

func DegreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func RadiansToDegrees(radians float64) float64 {
	return radians * 180 / math.Pi
}

// PointAt projects a point distance away from origin along direction.
func PointAt(direction, distance float64, origin r2.Point) r2.Point {
	return r2.Point{
		X: origin.X + math.Cos(direction)*distance,
		Y: origin.Y + math.Sin(direction)*distance,
	}
}

// Direction returns the heading of a velocity vector.
func Direction(velocity r2.Point) float64 {
	return math.Atan2(velocity.Y, velocity.X)
}

// Cone is a range of directions around Center. Start and End are normalized;
// Center keeps the caller's value.
type Cone struct {
	Start  float64
	Center float64
	End    float64
}

// DirectionCone builds a cone of the given width in degrees around direction.
func DirectionCone(direction, degrees float64) Cone {
	half := DegreesToRadians(degrees / 2)
	return Cone{
		Start:  NormalizeAngle(direction - half),
		Center: direction,
		End:    NormalizeAngle(direction + half),
	}
}

// Rays returns the three rays that make up the cone, left edge first.
func (c Cone) Rays() [3]float64 {
	return [3]float64{c.Start, c.Center, c.End}
}

// Contains reports whether angle falls inside the cone, bounds inclusive,
// accounting for cones that wrap around 0.
func (c Cone) Contains(angle float64) bool {
	angle = NormalizeAngle(angle)
	if c.Start <= c.End {
		return angle >= c.Start && angle <= c.End
	}
	return angle >= c.Start || angle <= c.End
}
