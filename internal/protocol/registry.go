package protocol

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrUnknownType     = errors.New("unknown message type")
	ErrStateNotAllowed = errors.New("message not allowed in session state")
)

// HandlerFunc is the callback signature for message handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, msg *Inbound)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps message types to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a message type to a handler, restricted to the given session states.
func (reg *Registry) Register(msgType string, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[msgType] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch finds the handler for msg.Type, validates the session state and
// calls the handler. Unknown types wrap ErrUnknownType; state violations wrap
// ErrStateNotAllowed. A panicking handler is recovered and reported as an error.
func (reg *Registry) Dispatch(sess any, state SessionState, msg *Inbound) error {
	reg.log.Debug("message received",
		zap.String("type", msg.Type),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	if !entry.allowedStates[state] {
		return fmt.Errorf("%w: %q in %s", ErrStateNotAllowed, msg.Type, state)
	}
	return reg.safeCall(entry.fn, sess, msg)
}

// safeCall executes a handler with panic recovery so one bad message cannot
// take down the game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, msg *Inbound) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("type", msg.Type),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %q: %v", msg.Type, rec)
		}
	}()
	fn(sess, msg)
	return nil
}
