// Package protocol defines the flat, type-tagged messages exchanged between
// clients and a shard, and the registry that routes inbound ones.
package protocol

import "github.com/spacemmo/server/internal/world"

// Message types.
const (
	TypeJoin    = "join"
	TypeNew     = "new"
	TypeTurn    = "turn"
	TypeFire    = "fire"
	TypeHit     = "hit"
	TypeDelete  = "delete"
	TypeAOI     = "aoi"
	TypeHandoff = "handoff"
)

// Position is a ship placement carried across a shard handoff.
type Position struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Dir string  `json:"dir"`
}

// Inbound is the union of every client→server message. Fields not used by a
// given type are left zero.
type Inbound struct {
	Type     string    `json:"type"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Dir      string    `json:"dir"`
	Position *Position `json:"position,omitempty"` // join only
}

// Envelope is decoded first on the client side to learn the message type.
type Envelope struct {
	Type string `json:"type"`
}

// ---------- server → client ----------

// Join acknowledges a join and tells the client its ship ID.
type Join struct {
	Type  string          `json:"type"`
	ID    world.EntityID  `json:"id"`
	X     float64         `json:"x"`
	Y     float64         `json:"y"`
	Dir   world.Direction `json:"dir"`
	Shard int             `json:"shard"`
}

// ShipState carries a ship's kinematic state; used for "new" and "turn".
type ShipState struct {
	Type string          `json:"type"`
	ID   world.EntityID  `json:"id"`
	X    float64         `json:"x"`
	Y    float64         `json:"y"`
	Dir  world.Direction `json:"dir"`
}

type Fire struct {
	Type   string          `json:"type"`
	Ship   world.EntityID  `json:"ship"`
	Rocket world.RocketID  `json:"rocket"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Dir    world.Direction `json:"dir"`
}

type Hit struct {
	Type   string         `json:"type"`
	Ship   world.EntityID `json:"ship"`
	Rocket world.RocketID `json:"rocket"`
}

type Delete struct {
	Type string         `json:"type"`
	ID   world.EntityID `json:"id"`
}

type AOI struct {
	Type        string `json:"type"`
	CellIndexes []int  `json:"cellIndexes"`
}

// Handoff advises a client to migrate its ship to another shard.
type Handoff struct {
	Type  string          `json:"type"`
	Shard int             `json:"shard"`
	X     float64         `json:"x"`
	Y     float64         `json:"y"`
	Dir   world.Direction `json:"dir"`
}

func NewJoin(s *world.Ship, shard int) Join {
	return Join{Type: TypeJoin, ID: s.ID, X: s.X, Y: s.Y, Dir: s.Dir, Shard: shard}
}

func NewShip(s *world.Ship) ShipState {
	return ShipState{Type: TypeNew, ID: s.ID, X: s.X, Y: s.Y, Dir: s.Dir}
}

func NewTurn(s *world.Ship) ShipState {
	return ShipState{Type: TypeTurn, ID: s.ID, X: s.X, Y: s.Y, Dir: s.Dir}
}

func NewFire(r *world.Rocket) Fire {
	return Fire{Type: TypeFire, Ship: r.From, Rocket: r.ID, X: r.X, Y: r.Y, Dir: r.Dir}
}

func NewHit(target world.EntityID, rocket world.RocketID) Hit {
	return Hit{Type: TypeHit, Ship: target, Rocket: rocket}
}

func NewDelete(id world.EntityID) Delete {
	return Delete{Type: TypeDelete, ID: id}
}

func NewAOI(cells []int) AOI {
	if cells == nil {
		cells = []int{}
	}
	return AOI{Type: TypeAOI, CellIndexes: cells}
}

func NewHandoff(shard int, m world.Motion) Handoff {
	return Handoff{Type: TypeHandoff, Shard: shard, X: m.X, Y: m.Y, Dir: m.Dir}
}
