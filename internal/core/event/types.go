package event

import "github.com/spacemmo/server/internal/world"

// ShipJoined fires after a ship is placed and announced.
type ShipJoined struct {
	ShipID    world.EntityID
	SessionID uint64
	Shard     int
	Motion    world.Motion
	Carried   bool // position came from a handoff join
}

// ShipLeft fires after a ship is destroyed on disconnect.
type ShipLeft struct {
	ShipID    world.EntityID
	SessionID uint64
	Hits      int
	Kills     int
	Handoff   bool // ship had been told to migrate
}

type RocketHit struct {
	RocketID world.RocketID
	Shooter  world.EntityID
	Target   world.EntityID
	X, Y     float64
}

// HandoffAdvised fires when a ship crosses the shard midline.
type HandoffAdvised struct {
	ShipID world.EntityID
	From   int
	To     int
	Motion world.Motion
}
