package protocol

import "fmt"

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateConnected     SessionState = iota // socket open, no ship yet
	StateJoined                            // ship placed in the world
	StateDisconnecting                     // closing; inbound traffic ignored
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateJoined:
		return "Joined"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}
