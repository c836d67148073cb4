package handler

import (
	"go.uber.org/zap"

	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
)

// HandleAOIOptIn subscribes the session to the periodic list of non-empty
// cells pushed by AOIDiagSystem.
func HandleAOIOptIn(sess *net.Session, _ *protocol.Inbound, deps *Deps) {
	if !sess.WantsAOI {
		sess.WantsAOI = true
		deps.Log.Debug("aoi diagnostics enabled", zap.Uint64("session", sess.ID))
	}
}
