package radar

import (
	"math"

	"github.com/golang/geo/r2"

	"particles/internal/geom"
)

const (
	// MaxDistance is the farthest point the radar samples.
	MaxDistance = 100.0
	// InteriorPoints is the number of Fibonacci-spaced samples between the
	// first and last radar distance.
	InteriorPoints = 2
	// StartOffset is added to the agent radius for the nearest sample.
	StartOffset = 15.0
	// ConeDegrees is the width of the forward sensing cone.
	ConeDegrees = 90.0
)

// goalCone covers the travel direction toward the goal; rays inside it are
// not cast so the dominant heading is not counted twice.
var goalCone = geom.DirectionCone(0, ConeDegrees)

// Walls answers whether a point lies on a wall.
type Walls interface {
	InWallBand(p r2.Point) bool
}

// Ray is one positive sample of a proximity hit.
type Ray struct {
	Position  r2.Point
	Direction float64
}

// ProximityHit groups every positive ray cast at one distance.
type ProximityHit struct {
	Direction     float64
	Distance      float64
	DistanceIndex int
	Strength      float64
	Rays          []Ray
}

// DistributedPoints returns points between start and end whose spacing grows
// along the Fibonacci sequence, so samples are denser near start.
func DistributedPoints(start, end float64, n int) []float64 {
	if n <= 0 {
		return []float64{start, end}
	}

	fib := []float64{1, 1}
	for i := 2; i <= n; i++ {
		fib = append(fib, fib[i-1]+fib[i-2])
	}
	sum := 0.0
	for _, f := range fib {
		sum += f
	}
	interval := (end - start) / sum

	points := make([]float64, 0, n+2)
	points = append(points, start)
	cumulative := 0.0
	for i := 0; i < n; i++ {
		cumulative += fib[i]
		points = append(points, math.Round(start+cumulative*interval))
	}
	return append(points, end)
}

// PointsForStrength keeps the leading share of points given a strength
// percentage in [0, 100].
func PointsForStrength(points []float64, strength float64) []float64 {
	count := int(math.Round(strength / 100 * float64(len(points))))
	if count < 0 {
		count = 0
	}
	if count > len(points) {
		count = len(points)
	}
	return points[:count]
}

// Distances returns the radar sample distances for an agent.
func Distances(radius, strength float64) []float64 {
	return PointsForStrength(DistributedPoints(radius+StartOffset, MaxDistance, InteriorPoints), strength)
}

// Sense casts the forward cone at every sample distance and returns the
// distances that touched a wall, nearest first.
func Sense(origin r2.Point, direction, radius, strength float64, walls Walls) []ProximityHit {
	distances := Distances(radius, strength)
	rays := geom.DirectionCone(direction, ConeDegrees).Rays()

	var hits []ProximityHit
	for index, distance := range distances {
		var positive []Ray
		for _, ray := range rays {
			if goalCone.Contains(ray) {
				continue
			}
			p := geom.PointAt(ray, distance, origin)
			if walls.InWallBand(p) {
				positive = append(positive, Ray{Position: p, Direction: ray})
			}
		}
		if len(positive) == 0 {
			continue
		}
		hits = append(hits, ProximityHit{
			Direction:     direction,
			Distance:      distance,
			DistanceIndex: index,
			Strength:      float64(index) / float64(len(distances)),
			Rays:          positive,
		})
	}
	return hits
}
