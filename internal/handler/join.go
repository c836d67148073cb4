package handler

import (
	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/core/event"
	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/scripting"
	"github.com/spacemmo/server/internal/world"
)

// HandleJoin places a new ship. A carried position (shard handoff) wins over
// the Lua spawn hook, which wins over uniform random placement. Non-finite
// positions from either source are ignored. The joiner
// learns its ID and every existing ship; everyone else learns the joiner.
func HandleJoin(sess *net.Session, msg *protocol.Inbound, deps *Deps) {
	ws := deps.World
	placement, carried := choosePlacement(msg, deps)

	ship := ws.AddShip(sess.ID, placement)
	sess.SetState(protocol.StateJoined)

	sess.Send(protocol.NewJoin(ship, deps.Shard))
	for _, other := range ws.Ships() {
		if other.ID != ship.ID {
			sess.Send(protocol.NewShip(other))
		}
	}
	deps.Out.BroadcastExcept(ship.ID, protocol.NewShip(ship))

	event.Emit(deps.Bus, event.ShipJoined{
		ShipID:    ship.ID,
		SessionID: sess.ID,
		Shard:     deps.Shard,
		Motion:    ship.Motion,
		Carried:   carried,
	})

	deps.Log.Info("ship joined",
		zap.Uint64("session", sess.ID),
		zap.Uint64("ship", uint64(ship.ID)),
		zap.Float64("x", ship.X),
		zap.Float64("y", ship.Y),
		zap.String("dir", string(ship.Dir)),
		zap.Bool("handoff", carried),
	)
}

func choosePlacement(msg *protocol.Inbound, deps *Deps) (world.Motion, bool) {
	ws := deps.World
	random := ws.RandomPlacement()

	if p := msg.Position; p != nil && !world.Finite(p.X, p.Y) {
		deps.Log.Warn("carried position ignored: non-finite",
			zap.Float64("x", p.X), zap.Float64("y", p.Y))
	} else if p != nil {
		m := world.Motion{X: p.X, Y: p.Y, Dir: random.Dir}
		if d, err := world.ParseDirection(p.Dir); err == nil {
			m.Dir = d
		} else if d, err := world.ParseDirection(msg.Dir); err == nil {
			m.Dir = d
		}
		return m, true
	}

	if deps.Scripting != nil {
		b := ws.Bounds()
		loc := deps.Scripting.SpawnLocation(scripting.SpawnRequest{
			Width:     b.Width,
			Height:    b.Height,
			Shard:     deps.Shard,
			ShipCount: ws.ShipCount(),
		})
		if loc != nil && !world.Finite(loc.X, loc.Y) {
			deps.Log.Warn("lua spawn location ignored: non-finite",
				zap.Float64("x", loc.X), zap.Float64("y", loc.Y))
		} else if loc != nil {
			m := world.Motion{X: loc.X, Y: loc.Y, Dir: random.Dir}
			if d, err := world.ParseDirection(loc.Dir); err == nil {
				m.Dir = d
			}
			return m, false
		}
	}
	return random, false
}
