package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/core/event"
	coresys "github.com/spacemmo/server/internal/core/system"
	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/shard"
	"github.com/spacemmo/server/internal/world"
)

// Outbox delivers messages to ships by ID.
type Outbox interface {
	ToShip(id world.EntityID, msg any)
	ToShips(ids []world.EntityID, msg any)
}

// SimulationSystem advances every ship and rocket by one step, keeps
// interest subscriptions in step with movement, resolves rocket hits among
// spatially relevant ships, and advises clients to migrate at the shard
// midline. Phase 2 (Update).
type SimulationSystem struct {
	world *world.State
	out   Outbox
	bus   *event.Bus
	topo  *shard.Topology
	shard int
	log   *zap.Logger
}

func NewSimulationSystem(ws *world.State, out Outbox, bus *event.Bus, topo *shard.Topology, shardID int, log *zap.Logger) *SimulationSystem {
	return &SimulationSystem{
		world: ws,
		out:   out,
		bus:   bus,
		topo:  topo,
		shard: shardID,
		log:   log,
	}
}

func (s *SimulationSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *SimulationSystem) Update(_ time.Duration) {
	for _, ship := range s.world.Ships() {
		s.stepShip(ship)
	}
	for _, r := range s.world.Rockets() {
		s.stepRocket(r)
	}
}

func (s *SimulationSystem) stepShip(ship *world.Ship) {
	prevX, prevY := ship.X, ship.Y
	if gained, moved := s.world.AdvanceShip(ship); moved && len(gained) > 0 {
		s.out.ToShips(gained, protocol.NewTurn(ship))
	}

	if ship.HandoffPending || !shard.Crossed(s.world.Bounds(), prevX, prevY, ship.X, ship.Y, ship.Dir) {
		return
	}
	next, ok := s.topo.Next(s.shard, ship.Dir)
	if !ok {
		s.log.Warn("no neighbour shard", zap.Int("shard", s.shard), zap.String("dir", string(ship.Dir)))
		return
	}
	ship.HandoffPending = true
	s.out.ToShip(ship.ID, protocol.NewHandoff(next, ship.Motion))
	event.Emit(s.bus, event.HandoffAdvised{ShipID: ship.ID, From: s.shard, To: next, Motion: ship.Motion})
	s.log.Debug("handoff advised",
		zap.Uint64("ship", uint64(ship.ID)),
		zap.Int("to", next),
	)
}

func (s *SimulationSystem) stepRocket(r *world.Rocket) {
	oldCell, newCell, inWorld := s.world.AdvanceRocket(r)
	if !inWorld {
		s.world.RemoveRocket(r.ID)
		return
	}

	if target := s.world.HitTarget(r, newCell); target != nil {
		s.out.ToShips(s.world.Interest().Audience(newCell), protocol.NewHit(target.ID, r.ID))
		s.world.RemoveRocket(r.ID)
		target.Hits++
		if shooter := s.world.Ship(r.From); shooter != nil {
			shooter.Kills++
		}
		event.Emit(s.bus, event.RocketHit{RocketID: r.ID, Shooter: r.From, Target: target.ID, X: r.X, Y: r.Y})
		return
	}

	if newCell != oldCell {
		if gained := s.world.Interest().ObserversGained(oldCell, newCell, r.From); len(gained) > 0 {
			s.out.ToShips(gained, protocol.NewFire(r))
		}
	}
}
