package playback

import "fmt"

// SessionState is the lifecycle of one ChannelSession.
type SessionState int

const (
	StateEmpty SessionState = iota
	StatePreparing
	StateReady
	StateActive
	StatePaused
	StateDisabled
)

func (s SessionState) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StatePreparing:
		return "PREPARING"
	case StateReady:
		return "READY"
	case StateActive:
		return "ACTIVE"
	case StatePaused:
		return "PAUSED"
	case StateDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// Live reports whether the state holds a decoder.
func (s SessionState) Live() bool {
	switch s {
	case StatePreparing, StateReady, StateActive, StatePaused:
		return true
	}
	return false
}

// Positioned reports whether the session can serve as the position source.
func (s SessionState) Positioned() bool {
	return s == StateActive || s == StatePaused
}

var sessionTransitions = map[SessionState][]SessionState{
	StateEmpty:     {StatePreparing, StateDisabled},
	StatePreparing: {StatePreparing, StateReady, StateDisabled, StateEmpty},
	StateReady:     {StatePreparing, StateActive, StateDisabled, StateEmpty},
	StateActive:    {StatePreparing, StatePaused, StateDisabled, StateEmpty},
	StatePaused:    {StatePreparing, StateActive, StateDisabled, StateEmpty},
	StateDisabled:  {StatePreparing, StateDisabled, StateEmpty},
}

func (s SessionState) canTransition(to SessionState) bool {
	for _, next := range sessionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type transitionError struct {
	from, to SessionState
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.from, e.to)
}

// EngineState is the façade's track state machine.
type EngineState int

const (
	EngineIdle EngineState = iota
	EngineLoading
	EnginePlaying
	EnginePaused
)

func (s EngineState) String() string {
	switch s {
	case EngineIdle:
		return "IDLE"
	case EngineLoading:
		return "LOADING"
	case EnginePlaying:
		return "PLAYING"
	case EnginePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}
