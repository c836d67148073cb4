package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/spacemmo/server/internal/core/system"
	"github.com/spacemmo/server/internal/handler"
	"github.com/spacemmo/server/internal/net"
	"github.com/spacemmo/server/internal/protocol"
)

// SessionSource yields freshly upgraded sessions.
type SessionSource interface {
	NewSessions() <-chan *net.Session
}

// InputSystem accepts new sessions, drains inbound queues through the
// message registry, and cleans up closed sessions. Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *protocol.Registry
	store      *net.SessionStore
	deps       *handler.Deps
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(source SessionSource, registry *protocol.Registry, store *net.SessionStore, deps *handler.Deps, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		deps:       deps,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.acceptNew()

	for _, sess := range s.store.Sorted() {
		if sess.IsClosed() {
			handler.HandleDisconnect(sess, s.deps)
			s.store.Remove(sess.ID)
			continue
		}
		s.drain(sess)
	}
}

func (s *InputSystem) acceptNew() {
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
		default:
			return
		}
	}
}

// drain dispatches up to maxPerTick queued frames of one session.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		var frame []byte
		select {
		case frame = <-sess.InQueue:
		default:
			return
		}

		var msg protocol.Inbound
		if err := sess.Decode(frame, &msg); err != nil {
			s.log.Debug("undecodable message", zap.Uint64("session", sess.ID), zap.Error(err))
			continue
		}
		if err := s.registry.Dispatch(sess, sess.State(), &msg); err != nil {
			s.log.Debug("message dispatch error",
				zap.Uint64("session", sess.ID),
				zap.Error(err),
			)
		}
	}
}
