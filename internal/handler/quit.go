package handler

import (
	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/core/event"
	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
)

// HandleDisconnect cleans up after a closed session: the ship is destroyed,
// its subscriptions dropped, and every other ship told to delete it. A
// session that never joined has nothing to clean up.
func HandleDisconnect(sess *net.Session, deps *Deps) {
	ws := deps.World
	ship := ws.ShipBySession(sess.ID)
	if ship == nil {
		return
	}
	ws.RemoveShip(ship.ID)
	deps.Out.BroadcastExcept(ship.ID, protocol.NewDelete(ship.ID))

	event.Emit(deps.Bus, event.ShipLeft{
		ShipID:    ship.ID,
		SessionID: sess.ID,
		Hits:      ship.Hits,
		Kills:     ship.Kills,
		Handoff:   ship.HandoffPending,
	})

	deps.Log.Info("ship left",
		zap.Uint64("session", sess.ID),
		zap.Uint64("ship", uint64(ship.ID)),
		zap.Int("hits", ship.Hits),
		zap.Int("kills", ship.Kills),
		zap.Bool("handoff", ship.HandoffPending),
	)
}
