// Package engine reads one document aloud.
//
// An Engine owns the document's chunks together with the scheduler that
// synthesizes them, the controller that plays them in order and the
// tracker that reports progress. Nothing is shared between engines; open
// one per document.
package engine

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/logging"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/progress"
	"github.com/dgnsrekt/readaloud/internal/scheduler"
	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

var (
	_ playback.Device         = (*audio.Player)(nil)
	_ playback.Device         = (*audio.MockDevice)(nil)
	_ playback.Source         = (*scheduler.Scheduler)(nil)
	_ progress.PositionSource = (*playback.Controller)(nil)
)

// ErrNoChunk is returned by RegenerateCurrent without an active session.
var ErrNoChunk = errors.New("no chunk is being played")

// Options configures an Engine. Zero values select package defaults.
type Options struct {
	MaxBytes     int           // Chunk size ceiling for the gateway
	Workers      int           // Background synthesis workers
	PollInterval time.Duration // Recheck interval while waiting on a chunk
	Params       synth.Params
	Recorder     *logging.Recorder
}

// Engine plays a single document.
type Engine struct {
	text    string
	chunks  []segment.Chunk
	sched   *scheduler.Scheduler
	ctrl    *playback.Controller
	tracker *progress.Tracker
}

// New segments text and wires the pipeline from gw to device.
func New(text string, gw synth.Gateway, device playback.Device, opts Options) *Engine {
	chunks := segment.Segment(text, opts.MaxBytes)
	sched := scheduler.New(gw, scheduler.Options{
		Workers:  opts.Workers,
		Recorder: opts.Recorder,
	})
	ctrl := playback.New(device, sched, chunks, playback.Options{
		PollInterval: opts.PollInterval,
		Params:       opts.Params.Normalize(),
	})

	log.Debug("engine ready", "gateway", gw.Name(), "bytes", len(text), "chunks", len(chunks))

	return &Engine{
		text:    text,
		chunks:  chunks,
		sched:   sched,
		ctrl:    ctrl,
		tracker: progress.New(ctrl.Table(), ctrl),
	}
}

// Play starts reading at the chunk containing fromChar.
func (e *Engine) Play(fromChar int) error {
	return e.ctrl.Play(fromChar)
}

// Pause freezes playback. Synthesis continues in the background.
func (e *Engine) Pause() error {
	return e.ctrl.Pause()
}

// Resume continues from the paused position.
func (e *Engine) Resume() error {
	return e.ctrl.Resume()
}

// TogglePause pauses a playing session and resumes a paused one.
func (e *Engine) TogglePause() error {
	if e.ctrl.Status().State == playback.StatePaused {
		return e.ctrl.Resume()
	}
	return e.ctrl.Pause()
}

// Stop ends the session and discards all synthesized audio.
func (e *Engine) Stop() {
	e.ctrl.Stop()
}

// Seek jumps to the chunk containing char.
func (e *Engine) Seek(char int) error {
	return e.ctrl.Seek(char)
}

// SeekChunk jumps by delta chunks from the current one, clamped to the
// document.
func (e *Engine) SeekChunk(delta int) error {
	if len(e.chunks) == 0 {
		return nil
	}
	idx := e.ctrl.Status().ChunkIndex + delta
	idx = max(0, min(idx, len(e.chunks)-1))
	return e.ctrl.Seek(e.chunks[idx].Start)
}

// Regenerate retries synthesis of a failed chunk.
func (e *Engine) Regenerate(index int) error {
	return e.sched.Regenerate(index)
}

// RegenerateCurrent retries the chunk playback is waiting on.
func (e *Engine) RegenerateCurrent() error {
	st := e.ctrl.Status()
	if st.SessionID == "" {
		return ErrNoChunk
	}
	return e.sched.Regenerate(st.ChunkIndex)
}

// SetParams sets the voice parameters used from the next Play.
func (e *Engine) SetParams(p synth.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.ctrl.SetParams(p.Normalize())
	return nil
}

// Params returns the voice parameters for the next Play.
func (e *Engine) Params() synth.Params {
	return e.ctrl.Params()
}

// CurrentCharIndex returns the approximate character being spoken, or 0
// without a session. Callers persist it to resume later with Play.
func (e *Engine) CurrentCharIndex() int {
	return e.tracker.CurrentCharIndex()
}

// Progress returns the approximate percentage of the document spoken.
func (e *Engine) Progress() float64 {
	return e.tracker.OverallProgressPercent()
}

// Events returns the playback event stream.
func (e *Engine) Events() <-chan playback.Event {
	return e.ctrl.Events()
}

// Status returns a snapshot of the playback session.
func (e *Engine) Status() playback.Status {
	return e.ctrl.Status()
}

// Chunks returns the document's chunks.
func (e *Engine) Chunks() []segment.Chunk {
	return e.chunks
}

// Len returns the document length in bytes.
func (e *Engine) Len() int {
	return len(e.text)
}

// Stats returns the scheduler's task counts.
func (e *Engine) Stats() scheduler.Stats {
	return e.sched.Stats()
}

// Metrics summarizes synthesis so far.
func (e *Engine) Metrics() logging.Summary {
	return e.sched.Metrics()
}

// Close stops playback and waits for in-flight synthesis to return.
func (e *Engine) Close() {
	e.ctrl.Stop()
	e.sched.Wait()
	log.Debug("engine closed", "synthesis", e.sched.Metrics())
}
