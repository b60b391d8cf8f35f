package playback

// State is the state of a playback session.
type State int

const (
	// StateIdle means no audio has started yet, or the session ended.
	StateIdle State = iota
	// StatePlaying means a chunk is playing or the next one is awaited.
	StatePlaying
	// StatePaused means the device is frozen mid-chunk.
	StatePaused
	// StateStopped is passed through while a session is torn down.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// transitions lists the valid moves out of each state.
var transitions = map[State][]State{
	StateIdle:    {StatePlaying, StateStopped},
	StatePlaying: {StatePaused, StateStopped, StateIdle},
	StatePaused:  {StatePlaying, StateStopped},
	StateStopped: {StateIdle},
}

// canTransition reports whether a session may move from one state to another.
func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
