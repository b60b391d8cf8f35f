package playback

// EventType identifies an Event.
type EventType int

const (
	// EventStateChanged carries the session's new State.
	EventStateChanged EventType = iota
	// EventChunkStarted reports that Chunk began playing.
	EventChunkStarted
	// EventChunkFailed reports that Chunk could not be synthesized. Playback
	// waits on it until it is regenerated or the session is stopped.
	EventChunkFailed
	// EventCompleted reports that the last chunk finished.
	EventCompleted
	// EventPlaybackError carries a *DeviceError; the session is stopped.
	EventPlaybackError
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "state-changed"
	case EventChunkStarted:
		return "chunk-started"
	case EventChunkFailed:
		return "chunk-failed"
	case EventCompleted:
		return "completed"
	case EventPlaybackError:
		return "playback-error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the event ends its session. Terminal events are
// never dropped.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventPlaybackError
}

// Event is a notification from the controller.
type Event struct {
	Type      EventType
	SessionID string
	State     State
	Chunk     int
	Err       error
}

// Status is a snapshot of the controller.
type Status struct {
	SessionID  string // Empty without a session
	State      State
	ChunkIndex int
	Waiting    bool // Waiting for the current chunk's audio
}
