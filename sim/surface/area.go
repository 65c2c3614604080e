package surface

import (
	"fmt"
	"math"

	"github.com/envsim/envsim/sim"
)

// Direction is the outcome of classifying a point against a SquareArea.
type Direction int

const (
	Inside Direction = iota
	Up
	Left
	Down
	Right
)

var directions = [...]Direction{Up, Left, Down, Right}

func (d Direction) String() string {
	switch d {
	case Inside:
		return "inside"
	case Up:
		return "up"
	case Left:
		return "left"
	case Down:
		return "down"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Opposite returns the reverse direction. It panics for Inside and unknown
// values, which no walk produces.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	default:
		panic(fmt.Errorf("%w: no opposite of %v", sim.ErrUnknownDirection, d))
	}
}

// border is the slot of d in a tile's neighbour array.
func (d Direction) border() int {
	switch d {
	case Up, Left, Down, Right:
		return int(d) - 1
	default:
		panic(fmt.Errorf("%w: no border for %v", sim.ErrUnknownDirection, d))
	}
}

// SquareArea is an axis-aligned square given by its upper-left (Min) and
// lower-right (Max) corners. Containment is half-open, [Min, Max), so
// adjacent areas never share a point.
type SquareArea struct {
	Min Vec2 `json:"min"`
	Max Vec2 `json:"max"`
}

// NewSquareArea builds the square with upper-left corner origin.
func NewSquareArea(origin Vec2, side float64) SquareArea {
	return SquareArea{Min: origin, Max: origin.Add(V(side, side))}
}

func (a SquareArea) Side() float64 {
	return a.Max.X - a.Min.X
}

func (a SquareArea) Contains(p Vec2) bool {
	return a.Classify(p) == Inside
}

// Classify returns Inside when p lies in the area, otherwise the single
// direction of the neighbouring area to try next. Horizontal displacement is
// resolved before vertical, so a point past a corner is walked sideways first.
func (a SquareArea) Classify(p Vec2) Direction {
	switch {
	case p.X < a.Min.X:
		return Left
	case p.X >= a.Max.X:
		return Right
	case p.Y < a.Min.Y:
		return Up
	case p.Y >= a.Max.Y:
		return Down
	default:
		return Inside
	}
}

// DistanceTo returns the distance from p to the closest point of the area,
// 0 when p is inside.
func (a SquareArea) DistanceTo(p Vec2) float64 {
	dx := math.Max(math.Max(a.Min.X-p.X, 0), p.X-a.Max.X)
	dy := math.Max(math.Max(a.Min.Y-p.Y, 0), p.Y-a.Max.Y)
	return math.Hypot(dx, dy)
}
