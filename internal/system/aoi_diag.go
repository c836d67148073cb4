package system

import (
	"time"

	coresys "github.com/spacemmo/server/internal/core/system"
	"github.com/spacemmo/server/internal/handler"
	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
	"github.com/spacemmo/server/internal/world"
)

// AOIDiagSystem periodically pushes the list of non-empty subscription cells
// to sessions that opted in. Phase 3 (PostUpdate).
type AOIDiagSystem struct {
	world     *world.State
	store     *net.SessionStore
	out       *handler.Dispatcher
	interval  int
	tickCount int
}

func NewAOIDiagSystem(ws *world.State, store *net.SessionStore, out *handler.Dispatcher, intervalTicks int) *AOIDiagSystem {
	return &AOIDiagSystem{world: ws, store: store, out: out, interval: intervalTicks}
}

func (s *AOIDiagSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *AOIDiagSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0

	var opted []*net.Session
	s.store.ForEach(func(sess *net.Session) {
		if sess.WantsAOI && !sess.IsClosed() {
			opted = append(opted, sess)
		}
	})
	if len(opted) == 0 {
		return
	}
	s.out.ToSessions(opted, protocol.NewAOI(s.world.Interest().Subscriptions().NonEmptyCells()))
}
