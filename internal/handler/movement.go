package handler

import (
	"slices"

	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/world"
)

// HandleTurn snaps the sender's ship to the reported position and heading
// (zero-order convergence) and tells the ships watching the reported cell.
// Ships that only start watching because of the snap are told as well.
func HandleTurn(sess *net.Session, msg *protocol.Inbound, deps *Deps) {
	dir, err := world.ParseDirection(msg.Dir)
	if err != nil {
		deps.Log.Debug("turn discarded", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	if !world.Finite(msg.X, msg.Y) {
		deps.Log.Warn("turn discarded: non-finite position",
			zap.Uint64("session", sess.ID), zap.Float64("x", msg.X), zap.Float64("y", msg.Y))
		return
	}
	ws := deps.World
	ship := ws.ShipBySession(sess.ID)
	if ship == nil {
		return
	}

	gained := ws.RelocateShip(ship, msg.X, msg.Y, dir)
	audience := ws.Interest().Audience(ws.CellOf(ship.Motion))
	deps.Out.ToShips(mergeExcept(audience, gained, ship.ID), protocol.NewTurn(ship))
}

// mergeExcept returns the sorted union of two ID lists without except.
func mergeExcept(a, b []world.EntityID, except world.EntityID) []world.EntityID {
	out := make([]world.EntityID, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	out = slices.Compact(out)
	return slices.DeleteFunc(out, func(id world.EntityID) bool { return id == except })
}
