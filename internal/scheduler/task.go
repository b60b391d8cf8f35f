package scheduler

import (
	"fmt"
	"sync/atomic"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

// State is the generation state of one chunk.
type State int32

const (
	// StatePending means synthesis has not finished.
	StatePending State = iota
	// StateReady means audio is available.
	StateReady
	// StateFailed means synthesis returned an error.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// ChunkError reports a failed synthesis of one chunk.
type ChunkError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d failed: %v", e.Index, e.Err)
}

// Unwrap returns the gateway error.
func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Task tracks the synthesis of one chunk. It moves from Pending to Ready or
// Failed exactly once; Regenerate replaces a failed task with a new one
// instead of reviving it.
type Task struct {
	index int
	state atomic.Int32
	audio atomic.Pointer[synth.Audio]
	err   error // written before state becomes Failed
}

func newTask(index int) *Task {
	return &Task{index: index}
}

// Index returns the chunk index.
func (t *Task) Index() int {
	return t.index
}

// State returns the current state.
func (t *Task) State() State {
	return State(t.state.Load())
}

// Audio returns the synthesized audio of a Ready task. It returns nil for
// other states and after the scheduler released the audio.
func (t *Task) Audio() *synth.Audio {
	if t.State() != StateReady {
		return nil
	}
	return t.audio.Load()
}

// Err returns the *ChunkError of a Failed task.
func (t *Task) Err() error {
	if t.State() != StateFailed {
		return nil
	}
	return t.err
}

func (t *Task) complete(a *synth.Audio) {
	t.audio.Store(a)
	t.state.Store(int32(StateReady))
}

func (t *Task) fail(err error) {
	t.err = &ChunkError{Index: t.index, Err: err}
	t.state.Store(int32(StateFailed))
}

// release drops the task's audio. It reports whether this call did the
// release, so concurrent callers account for it once.
func (t *Task) release() bool {
	a := t.audio.Swap(nil)
	if a == nil {
		return false
	}
	a.Release()
	return true
}
