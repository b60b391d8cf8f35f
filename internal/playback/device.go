package playback

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/readaloud/internal/scheduler"
	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

// ErrInvalidState is returned when an operation is not valid in the
// session's current state.
var ErrInvalidState = errors.New("invalid state for operation")

// Device plays one audio clip at a time.
//
// OnEnded fires once when a loaded clip plays to its end; Stop and Load
// never trigger it. OnError reports failures that happen during playback.
// Callbacks may be invoked from any goroutine.
type Device interface {
	Load(a *synth.Audio) error
	Play() error
	Pause() error
	Stop() error
	OnEnded(fn func())
	OnError(fn func(error))
	FractionalPosition() float64
}

// Source supplies synthesized chunks. *scheduler.Scheduler implements it.
type Source interface {
	Schedule(chunks []segment.Chunk, start int, params synth.Params)
	Task(i int) *scheduler.Task
	CancelAll()
}

// DeviceError reports a playback device failure. It ends the session.
type DeviceError struct {
	Chunk int
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("playback device %s failed on chunk %d: %v", e.Op, e.Chunk, e.Err)
}

// Unwrap returns the device error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}
