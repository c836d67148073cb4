package world

// Ship is a player-controlled entity. Owned by State; accessed only from the
// game loop goroutine.
type Ship struct {
	ID        EntityID
	SessionID uint64
	Motion

	Hits  int // times struck
	Kills int // rockets of this ship that struck another

	// HandoffPending is set once the ship crossed the shard midline and its
	// client was told to migrate. Cleared only by the ship's destruction.
	HandoffPending bool
}

// Contains reports whether (x, y) lies within the square hitbox of half-size
// extent centred on the ship.
func (s *Ship) Contains(x, y, extent float64) bool {
	dx := x - s.X
	dy := y - s.Y
	return dx >= -extent && dx <= extent && dy >= -extent && dy <= extent
}
