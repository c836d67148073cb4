package world

import (
	"fmt"
	"math"
)

// Direction is one of the four cardinal headings. The string values are the
// wire representation.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Directions lists the headings in the order used for uniform random picks.
var Directions = [4]Direction{Right, Left, Up, Down}

// ParseDirection validates a wire heading.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Up, Down, Left, Right:
		return d, nil
	}
	return "", fmt.Errorf("invalid direction %q", s)
}

// Horizontal reports whether the heading moves along the x axis.
func (d Direction) Horizontal() bool { return d == Left || d == Right }

// delta returns the unit displacement for one step. Screen coordinates: up is -y.
func (d Direction) delta() (dx, dy float64) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

// Motion is the kinematic state shared by ships and rockets.
type Motion struct {
	X, Y float64
	Dir  Direction
}

// Step advances the position by dist along the current heading.
func (m *Motion) Step(dist float64) {
	dx, dy := m.Dir.delta()
	m.X += dx * dist
	m.Y += dy * dist
}

// JumpTo snaps the position (zero-order convergence).
func (m *Motion) JumpTo(x, y float64) {
	m.X = x
	m.Y = y
}

// Turn changes heading without moving.
func (m *Motion) Turn(d Direction) {
	m.Dir = d
}

// Bounds is the world rectangle [0,Width]×[0,Height].
type Bounds struct {
	Width  float64
	Height float64
}

// Contains reports whether (x, y) lies inside the closed rectangle.
func (b Bounds) Contains(x, y float64) bool {
	return x >= 0 && x <= b.Width && y >= 0 && y <= b.Height
}

// Wrap folds a position into [0,Width)×[0,Height) (toroidal edges).
func (b Bounds) Wrap(x, y float64) (float64, float64) {
	return wrap(x, b.Width), wrap(y, b.Height)
}

// Finite reports whether both coordinates are real numbers.
func Finite(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && !math.IsNaN(y) && !math.IsInf(y, 0)
}

// wrap maps NaN and ±Inf to 0 so a bad coordinate can never leave the grid.
func wrap(v, extent float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v >= 0 && v < extent {
		return v
	}
	v = math.Mod(v, extent)
	if v < 0 {
		v += extent
	}
	return v
}

// Kinematics holds the per-tick speeds and the hit extent, fixed at startup.
type Kinematics struct {
	ShipSpeed   float64 // units per tick
	RocketSpeed float64 // units per tick
	HitExtent   float64 // half-size of a ship's square hitbox
}

// DefaultKinematics matches the frame rate of 40 Hz used by the reference client.
func DefaultKinematics() Kinematics {
	return Kinematics{ShipSpeed: 1, RocketSpeed: 8, HitExtent: 10}
}
