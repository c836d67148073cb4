package handler

import (
	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/config"
	"github.com/spacemmo/server/internal/core/event"
	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/scripting"
	"github.com/spacemmo/server/internal/world"
)

// Deps holds shared dependencies injected into all message handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State
	Out       *Dispatcher
	Bus       *event.Bus
	Scripting *scripting.Engine // nil when no scripts are loaded
	Shard     int
}

// RegisterAll registers all message handlers into the registry.
func RegisterAll(reg *protocol.Registry, deps *Deps) {
	reg.Register(protocol.TypeJoin,
		[]protocol.SessionState{protocol.StateConnected},
		func(sess any, msg *protocol.Inbound) {
			HandleJoin(sess.(*net.Session), msg, deps)
		},
	)

	joined := []protocol.SessionState{protocol.StateJoined}
	reg.Register(protocol.TypeTurn, joined,
		func(sess any, msg *protocol.Inbound) {
			HandleTurn(sess.(*net.Session), msg, deps)
		},
	)
	reg.Register(protocol.TypeFire, joined,
		func(sess any, msg *protocol.Inbound) {
			HandleFire(sess.(*net.Session), msg, deps)
		},
	)

	// The diagnostic stream may be requested before or after joining.
	reg.Register(protocol.TypeAOI,
		[]protocol.SessionState{protocol.StateConnected, protocol.StateJoined},
		func(sess any, msg *protocol.Inbound) {
			HandleAOIOptIn(sess.(*net.Session), msg, deps)
		},
	)
}
