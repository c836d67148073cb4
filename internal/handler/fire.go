package handler

import (
	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/world"
)

// HandleFire launches a rocket from the reported position. The firer always
// learns the rocket ID; other ships only if they watch the launch cell.
func HandleFire(sess *net.Session, msg *protocol.Inbound, deps *Deps) {
	dir, err := world.ParseDirection(msg.Dir)
	if err != nil {
		deps.Log.Debug("fire discarded", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	if !world.Finite(msg.X, msg.Y) {
		deps.Log.Warn("fire discarded: non-finite position",
			zap.Uint64("session", sess.ID), zap.Float64("x", msg.X), zap.Float64("y", msg.Y))
		return
	}
	ws := deps.World
	ship := ws.ShipBySession(sess.ID)
	if ship == nil {
		return
	}

	r := ws.AddRocket(ship.ID, world.Motion{X: msg.X, Y: msg.Y, Dir: dir})
	audience := ws.Interest().Audience(ws.CellOf(r.Motion))
	deps.Out.ToShips(mergeExcept(audience, []world.EntityID{ship.ID}, 0), protocol.NewFire(r))
}
