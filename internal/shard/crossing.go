package shard

import "github.com/spacemmo/server/internal/world"

// Crossed reports whether a step from prev to cur strictly crossed the world's
// midline in the direction of travel: the vertical midline for left/right,
// the horizontal one for up/down. Landing exactly on the midline is not a
// crossing, and neither is the jump produced by wrapping at a world edge.
func Crossed(b world.Bounds, prevX, prevY, curX, curY float64, dir world.Direction) bool {
	switch dir {
	case world.Right:
		return prevX < b.Width/2 && b.Width/2 < curX
	case world.Left:
		return prevX > b.Width/2 && b.Width/2 > curX
	case world.Down:
		return prevY < b.Height/2 && b.Height/2 < curY
	case world.Up:
		return prevY > b.Height/2 && b.Height/2 > curY
	}
	return false
}
