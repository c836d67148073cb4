package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: accept sessions, drain inbound queues
	PhasePreUpdate               // 1: dispatch last tick's events
	PhaseUpdate                  // 2: advance ships and rockets
	PhasePostUpdate              // 3: aoi diagnostics
	PhaseOutput                  // 4: flush outbound buffers
	PhasePersist                 // 5: combat ledger flush
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	}
	return "unknown"
}

// System is one stage of the game loop.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
