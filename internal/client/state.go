package client

import (
	"errors"
	"fmt"
)

// ErrClosed is returned once the client has stopped for good.
var ErrClosed = errors.New("client closed")

// State is the connection state machine:
//
//	Connecting → Joined → HandoffPending → Connecting (next shard) → …
//
// and Closed on stop or an unrecoverable error.
type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateHandoffPending
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateJoined:
		return "Joined"
	case StateHandoffPending:
		return "HandoffPending"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// validTransitions lists the legal successors of each state.
var validTransitions = map[State][]State{
	StateConnecting:     {StateJoined, StateClosed},
	StateJoined:         {StateHandoffPending, StateClosed},
	StateHandoffPending: {StateConnecting, StateClosed},
	StateClosed:         {},
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
