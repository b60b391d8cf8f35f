// Package playback plays synthesized chunks strictly in document order.
//
// The Controller owns at most one session. A session waits for the
// current chunk's audio with a ticker-driven check, loads it into the
// device, and advances when the device reports the clip ended. Generation
// runs independently in a Source; the controller only ever reads it.
package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/readaloud/internal/scheduler"
	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

// DefaultPollInterval is how often a waiting session rechecks its chunk.
const DefaultPollInterval = 100 * time.Millisecond

const eventBufferSize = 64

// Options configures a Controller.
type Options struct {
	PollInterval time.Duration
	Params       synth.Params
}

// Controller drives a playback device from a chunk source.
type Controller struct {
	device Device
	source Source
	chunks []segment.Chunk
	table  segment.OffsetTable
	poll   time.Duration

	mu     sync.Mutex
	params synth.Params
	sess   *session

	// current mirrors sess for device callbacks, which must not take mu.
	current atomic.Pointer[session]
	events  chan Event
}

type session struct {
	id       string
	state    State
	chunk    int
	waiting  bool
	cancel   context.CancelFunc
	done     chan struct{}
	ended    chan struct{}
	errs     chan error
	notified map[*scheduler.Task]bool
}

// New creates a controller for a document's chunks.
func New(device Device, source Source, chunks []segment.Chunk, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	c := &Controller{
		device: device,
		source: source,
		chunks: chunks,
		table:  segment.NewOffsetTable(chunks),
		poll:   opts.PollInterval,
		params: opts.Params,
		events: make(chan Event, eventBufferSize),
	}

	device.OnEnded(c.handleEnded)
	device.OnError(c.handleDeviceError)

	return c
}

// Events returns the controller's event stream. When the consumer falls
// behind, non-terminal events are dropped to make room for new ones;
// EventCompleted and EventPlaybackError are always delivered.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Table returns the offset table of the controller's chunks.
func (c *Controller) Table() segment.OffsetTable {
	return c.table
}

// SetParams sets the voice parameters used by the next Play.
func (c *Controller) SetParams(p synth.Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = p
}

// Params returns the voice parameters for the next Play.
func (c *Controller) Params() synth.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Play starts a new session at the chunk containing fromChar, replacing
// any current session. It is a no-op for an empty document.
func (c *Controller) Play(fromChar int) error {
	if len(c.chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	c.stopLocked()

	idx := c.table.ChunkAt(fromChar)
	s := &session{
		id:       uuid.NewString(),
		state:    StateIdle,
		chunk:    idx,
		waiting:  true,
		ended:    make(chan struct{}, 1),
		errs:     make(chan error, 1),
		notified: make(map[*scheduler.Task]bool),
	}
	c.sess = s
	c.current.Store(s)

	log.Debug("playback session started", "session", s.id, "fromChar", fromChar, "chunk", idx)
	c.source.Schedule(c.chunks, idx, c.params)
	c.startLoopLocked(s)
	c.mu.Unlock()

	return nil
}

// Pause freezes the device. Generation keeps running.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil || s.state != StatePlaying {
		return ErrInvalidState
	}

	if !s.waiting {
		if err := c.device.Pause(); err != nil {
			return c.failLocked(s, "pause", err)
		}
	}
	c.transitionLocked(s, StatePaused)
	return nil
}

// Resume continues a paused session from where it froze.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil || s.state != StatePaused {
		return ErrInvalidState
	}

	if !s.waiting {
		if err := c.device.Play(); err != nil {
			return c.failLocked(s, "resume", err)
		}
	}
	c.transitionLocked(s, StatePlaying)
	return nil
}

// Stop ends the session, halting the device and cancelling generation.
// It is safe to call in any state and more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	done := c.stopLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Seek moves playback to the chunk containing char. Audio already
// generated is kept. Without a session Seek behaves like Play.
func (c *Controller) Seek(char int) error {
	c.mu.Lock()
	s := c.sess
	if s == nil {
		c.mu.Unlock()
		return c.Play(char)
	}
	defer c.mu.Unlock()

	idx := c.table.ChunkAt(char)
	s.cancel()
	if err := c.device.Stop(); err != nil {
		log.Warn("device stop failed during seek", "error", err)
	}
	drain(s)

	s.chunk = idx
	s.waiting = true
	s.notified = make(map[*scheduler.Task]bool)
	if s.state == StatePaused {
		c.transitionLocked(s, StatePlaying)
	}

	log.Debug("seeking", "session", s.id, "char", char, "chunk", idx)
	c.startLoopLocked(s)
	return nil
}

// Status returns a snapshot of the current session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil {
		return Status{State: StateIdle}
	}
	return Status{
		SessionID:  s.id,
		State:      s.state,
		ChunkIndex: s.chunk,
		Waiting:    s.waiting,
	}
}

// Position returns the current chunk and the fraction of it played. ok is
// false without a session.
func (c *Controller) Position() (chunk int, fraction float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil {
		return 0, 0, false
	}
	if s.waiting {
		return s.chunk, 0, true
	}
	return s.chunk, c.device.FractionalPosition(), true
}

func (c *Controller) startLoopLocked(s *session) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go c.run(ctx, s, done)
}

// run plays chunks until the session ends or ctx is cancelled.
func (c *Controller) run(ctx context.Context, s *session, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		if !c.waitAndStart(ctx, s, ticker) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case err := <-s.errs:
			c.fail(ctx, s, "play", err)
			return
		case <-s.ended:
			if !c.advance(ctx, s) {
				return
			}
		}
	}
}

// waitAndStart blocks until the session's chunk has started playing,
// rechecking on every tick. It returns false once the session is over.
func (c *Controller) waitAndStart(ctx context.Context, s *session, ticker *time.Ticker) bool {
	for {
		started, alive := c.startReady(ctx, s)
		if !alive {
			return false
		}
		if started {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// startReady plays the session's chunk if its audio is ready. The
// readiness check and the start share one lock hold, so a Pause can never
// slip in between them.
func (c *Controller) startReady(ctx context.Context, s *session) (started, alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return false, false
	}
	if s.state == StatePaused {
		return false, true
	}

	task := c.source.Task(s.chunk)
	if task == nil {
		return false, true
	}

	switch task.State() {
	case scheduler.StateReady:
		if a := task.Audio(); a != nil {
			ok := c.startChunkLocked(s, a)
			return ok, ok
		}
	case scheduler.StateFailed:
		if !s.notified[task] {
			s.notified[task] = true
			log.Warn("waiting on failed chunk", "chunk", s.chunk, "error", task.Err())
			c.emit(Event{Type: EventChunkFailed, SessionID: s.id, State: s.state, Chunk: s.chunk, Err: task.Err()})
		}
	}
	return false, true
}

// startChunkLocked loads and plays audio. A device failure ends the
// session and reports false.
func (c *Controller) startChunkLocked(s *session, audio *synth.Audio) bool {
	drain(s)
	if err := c.device.Load(audio); err != nil {
		c.failLocked(s, "load", err)
		return false
	}
	if err := c.device.Play(); err != nil {
		c.failLocked(s, "play", err)
		return false
	}

	s.waiting = false
	if s.state != StatePlaying {
		c.transitionLocked(s, StatePlaying)
	}
	log.Debug("chunk started", "session", s.id, "chunk", s.chunk, "duration", audio.Duration())
	c.emit(Event{Type: EventChunkStarted, SessionID: s.id, State: s.state, Chunk: s.chunk})
	return true
}

// advance moves to the next chunk, ending the session after the last one.
func (c *Controller) advance(ctx context.Context, s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}

	if s.chunk+1 < len(c.chunks) {
		s.chunk++
		s.waiting = true
		return true
	}

	log.Debug("playback completed", "session", s.id)
	c.source.CancelAll()
	c.emit(Event{Type: EventCompleted, SessionID: s.id, State: s.state, Chunk: s.chunk})
	c.transitionLocked(s, StateIdle)
	c.clearLocked()
	return false
}

func (c *Controller) fail(ctx context.Context, s *session, op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	c.failLocked(s, op, err)
}

// failLocked stops the session after a device failure and reports it.
func (c *Controller) failLocked(s *session, op string, err error) error {
	derr := &DeviceError{Chunk: s.chunk, Op: op, Err: err}
	log.Error("playback device error", "session", s.id, "chunk", s.chunk, "op", op, "error", err)

	c.stopLocked()
	c.emit(Event{Type: EventPlaybackError, SessionID: s.id, State: StateIdle, Chunk: s.chunk, Err: derr})
	return derr
}

// stopLocked tears the session down and returns its loop's done channel.
func (c *Controller) stopLocked() <-chan struct{} {
	s := c.sess
	if s == nil {
		return nil
	}

	s.cancel()
	if err := c.device.Stop(); err != nil {
		log.Warn("device stop failed", "error", err)
	}
	c.source.CancelAll()

	c.transitionLocked(s, StateStopped)
	c.transitionLocked(s, StateIdle)
	c.clearLocked()

	log.Debug("playback session stopped", "session", s.id, "chunk", s.chunk)
	return s.done
}

func (c *Controller) clearLocked() {
	c.sess = nil
	c.current.Store(nil)
}

func (c *Controller) transitionLocked(s *session, to State) {
	if !canTransition(s.state, to) {
		log.Debug("ignoring invalid transition", "from", s.state, "to", to)
		return
	}
	s.state = to
	c.emit(Event{Type: EventStateChanged, SessionID: s.id, State: to, Chunk: s.chunk})
}

// emit queues e without blocking. Callers hold mu, so emit is the only
// producer and the consumer can only ever make room.
func (c *Controller) emit(e Event) {
	for {
		select {
		case c.events <- e:
			return
		default:
		}

		if !e.Type.Terminal() {
			log.Debug("dropping playback event", "type", e.Type, "chunk", e.Chunk)
			return
		}
		c.evictOldest()
	}
}

// evictOldest removes the oldest queued non-terminal event, falling back
// to the oldest event when every queued event is terminal.
func (c *Controller) evictOldest() {
	var queued []Event
	for len(queued) < cap(c.events) {
		select {
		case e := <-c.events:
			queued = append(queued, e)
			continue
		default:
		}
		break
	}
	if len(queued) == 0 {
		return
	}

	victim := 0
	for i, e := range queued {
		if !e.Type.Terminal() {
			victim = i
			break
		}
	}
	log.Debug("dropping playback event", "type", queued[victim].Type, "chunk", queued[victim].Chunk)

	for i, e := range queued {
		if i != victim {
			c.events <- e
		}
	}
}

func (c *Controller) handleEnded() {
	if s := c.current.Load(); s != nil {
		select {
		case s.ended <- struct{}{}:
		default:
		}
	}
}

func (c *Controller) handleDeviceError(err error) {
	if s := c.current.Load(); s != nil {
		select {
		case s.errs <- err:
		default:
		}
	}
}

// drain discards device signals left over from a previous clip.
func drain(s *session) {
	for {
		select {
		case <-s.ended:
		case <-s.errs:
		default:
			return
		}
	}
}
