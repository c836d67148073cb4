package world

import (
	"cmp"
	"math/rand"
	"slices"
	"time"
)

// Config fixes the geometry and kinematics of one shard's world.
type Config struct {
	Bounds     Bounds
	Rows       int
	Cols       int
	CrossSize1 int
	CrossSize2 int
	Kinematics Kinematics
}

// State is the authoritative in-memory world of one shard: ships, rockets and
// the interest bookkeeping that follows them.
// Accessed only from the game loop goroutine; no locks.
type State struct {
	grid     *Grid
	interest *InterestManager
	kin      Kinematics

	ships     map[EntityID]*Ship
	bySession map[uint64]*Ship
	rockets   map[RocketID]*Rocket

	nextShipID   EntityID
	lastRocketID RocketID

	now func() time.Time
	rng *rand.Rand
}

func NewState(cfg Config) *State {
	grid := NewGrid(cfg.Bounds, cfg.Rows, cfg.Cols)
	return &State{
		grid: grid,
		interest: NewInterestManager(
			NewFootprintCache(grid, cfg.CrossSize1, cfg.CrossSize2),
			NewSubscriptionTable(grid.CellCount()),
		),
		kin:       cfg.Kinematics,
		ships:     make(map[EntityID]*Ship),
		bySession: make(map[uint64]*Ship),
		rockets:   make(map[RocketID]*Rocket),
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock replaces the time source used for rocket IDs.
func (s *State) SetClock(now func() time.Time) { s.now = now }

// SetRand replaces the random source used for spawn placement.
func (s *State) SetRand(rng *rand.Rand) { s.rng = rng }

// Rand is the world's generator, shared with the Lua spawn hook.
func (s *State) Rand() *rand.Rand { return s.rng }

func (s *State) Grid() *Grid                { return s.grid }
func (s *State) Interest() *InterestManager { return s.interest }
func (s *State) Kinematics() Kinematics     { return s.kin }
func (s *State) Bounds() Bounds             { return s.grid.Bounds() }

// CellOf returns the grid cell of a position known to be inside the world.
func (s *State) CellOf(m Motion) int {
	return s.grid.CellOf(m.X, m.Y)
}

// RandomPlacement picks a uniform position inside the world and a uniform
// cardinal heading.
func (s *State) RandomPlacement() Motion {
	b := s.grid.Bounds()
	return Motion{
		X:   s.rng.Float64() * b.Width,
		Y:   s.rng.Float64() * b.Height,
		Dir: Directions[s.rng.Intn(len(Directions))],
	}
}

// ---------- Ships ----------

// AddShip allocates a fresh ID, places the ship (folded into the world) and
// subscribes it to its footprint.
func (s *State) AddShip(sessionID uint64, m Motion) *Ship {
	s.nextShipID++
	m.X, m.Y = s.grid.Bounds().Wrap(m.X, m.Y)
	ship := &Ship{ID: s.nextShipID, SessionID: sessionID, Motion: m}
	s.ships[ship.ID] = ship
	s.bySession[sessionID] = ship
	s.interest.Track(ship.ID, s.CellOf(ship.Motion))
	return ship
}

// RemoveShip destroys a ship and drops all of its subscriptions. Returns nil
// if the ID is unknown.
func (s *State) RemoveShip(id EntityID) *Ship {
	ship := s.ships[id]
	if ship == nil {
		return nil
	}
	s.interest.Untrack(id, s.CellOf(ship.Motion))
	delete(s.ships, id)
	if s.bySession[ship.SessionID] == ship {
		delete(s.bySession, ship.SessionID)
	}
	return ship
}

func (s *State) Ship(id EntityID) *Ship { return s.ships[id] }

func (s *State) ShipBySession(sessionID uint64) *Ship { return s.bySession[sessionID] }

func (s *State) ShipCount() int { return len(s.ships) }

// Ships returns every ship in ascending ID order.
func (s *State) Ships() []*Ship {
	out := make([]*Ship, 0, len(s.ships))
	for _, ship := range s.ships {
		out = append(out, ship)
	}
	slices.SortFunc(out, func(a, b *Ship) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// RelocateShip snaps a ship to a client-reported position and heading. The
// position is folded into the world first. Returns the observers gained by a
// cell change, or nil.
func (s *State) RelocateShip(ship *Ship, x, y float64, dir Direction) []EntityID {
	oldCell := s.CellOf(ship.Motion)
	x, y = s.grid.Bounds().Wrap(x, y)
	ship.JumpTo(x, y)
	ship.Turn(dir)
	return s.interest.OnEntityMoved(ship.ID, oldCell, s.CellOf(ship.Motion))
}

// AdvanceShip moves a ship one tick along its heading, wrapping at the world
// edges. moved reports a cell change; gained lists the new observers.
func (s *State) AdvanceShip(ship *Ship) (gained []EntityID, moved bool) {
	oldCell := s.CellOf(ship.Motion)
	ship.Step(s.kin.ShipSpeed)
	ship.X, ship.Y = s.grid.Bounds().Wrap(ship.X, ship.Y)
	newCell := s.CellOf(ship.Motion)
	if newCell == oldCell {
		return nil, false
	}
	return s.interest.OnEntityMoved(ship.ID, oldCell, newCell), true
}

// ---------- Rockets ----------

// AddRocket creates a rocket owned by from. Its position is folded into the
// world; its ID is the current time in milliseconds, bumped past the last one
// issued.
func (s *State) AddRocket(from EntityID, m Motion) *Rocket {
	m.X, m.Y = s.grid.Bounds().Wrap(m.X, m.Y)
	id := RocketID(s.now().UnixMilli())
	if id <= s.lastRocketID {
		id = s.lastRocketID + 1
	}
	s.lastRocketID = id
	r := &Rocket{ID: id, From: from, Motion: m}
	s.rockets[id] = r
	return r
}

func (s *State) RemoveRocket(id RocketID) { delete(s.rockets, id) }

func (s *State) Rocket(id RocketID) *Rocket { return s.rockets[id] }

func (s *State) RocketCount() int { return len(s.rockets) }

// Rockets returns every rocket in ascending ID order.
func (s *State) Rockets() []*Rocket {
	out := make([]*Rocket, 0, len(s.rockets))
	for _, r := range s.rockets {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Rocket) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// AdvanceRocket moves a rocket one tick. inWorld is false once it has left
// the closed world rectangle, in which case the cells are meaningless.
func (s *State) AdvanceRocket(r *Rocket) (oldCell, newCell int, inWorld bool) {
	oldCell = s.CellOf(r.Motion)
	r.Step(s.kin.RocketSpeed)
	if !s.grid.Bounds().Contains(r.X, r.Y) {
		return oldCell, -1, false
	}
	return oldCell, s.CellOf(r.Motion), true
}

// HitTarget returns the first ship, by ascending ID, among the subscribers of
// cell whose hitbox contains the rocket. The rocket's own firer is never a
// target. Returns nil when nothing is struck.
func (s *State) HitTarget(r *Rocket, cell int) *Ship {
	for _, id := range s.interest.Audience(cell) {
		if id == r.From {
			continue
		}
		ship := s.ships[id]
		if ship == nil {
			continue
		}
		if ship.Contains(r.X, r.Y, s.kin.HitExtent) {
			return ship
		}
	}
	return nil
}
