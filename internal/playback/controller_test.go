package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/scheduler"
	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/synth/mock"
)

const testDoc = "First sentence here. Second sentence now. Third one ends it."

type harness struct {
	gw     *mock.Gateway
	sched  *scheduler.Scheduler
	device *audio.MockDevice
	ctrl   *Controller
	chunks []segment.Chunk
}

func newHarness(t *testing.T, doc string) *harness {
	t.Helper()

	chunks := segment.Segment(doc, 20)
	gw := mock.New()
	sched := scheduler.New(gw, scheduler.Options{Workers: 2})
	device := audio.NewMockDevice()
	ctrl := New(device, sched, chunks, Options{
		PollInterval: 5 * time.Millisecond,
		Params:       synth.DefaultParams(),
	})

	t.Cleanup(func() {
		ctrl.Stop()
		sched.Wait()
	})

	return &harness{gw: gw, sched: sched, device: device, ctrl: ctrl, chunks: chunks}
}

// waitEvent consumes events until one matches.
func waitEvent(t *testing.T, c *Controller, match func(Event) bool) Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-c.Events():
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for event; status %+v", c.Status())
			return Event{}
		}
	}
}

func started(chunk int) func(Event) bool {
	return func(e Event) bool { return e.Type == EventChunkStarted && e.Chunk == chunk }
}

func ofType(typ EventType) func(Event) bool {
	return func(e Event) bool { return e.Type == typ }
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StatePlaying, true},
		{StatePlaying, StatePaused, true},
		{StatePaused, StatePlaying, true},
		{StatePlaying, StateIdle, true},
		{StateStopped, StateIdle, true},
		{StateIdle, StatePaused, false},
		{StatePaused, StateIdle, false},
		{StateStopped, StatePlaying, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s): got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPlayFromChar(t *testing.T) {
	h := newHarness(t, testDoc)
	if len(h.chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(h.chunks))
	}

	if err := h.ctrl.Play(h.chunks[1].Start + 3); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitEvent(t, h.ctrl, started(1))

	st := h.ctrl.Status()
	if st.State != StatePlaying || st.ChunkIndex != 1 || st.Waiting {
		t.Errorf("Status: got %+v", st)
	}

	loaded := h.device.Loaded()
	if want := len(h.chunks[1].Text) * mock.BytesPerChar; loaded == nil || loaded.Size() != want {
		t.Errorf("loaded clip: got %v, want %d bytes", loaded, want)
	}
}

func TestPlaysInDocumentOrder(t *testing.T) {
	h := newHarness(t, testDoc)
	release := h.gw.Gate(h.chunks[0].Text)

	h.ctrl.Play(0)

	// Chunk 1 is ready long before chunk 0, but nothing may play yet.
	time.Sleep(50 * time.Millisecond)
	if task := h.sched.Task(1); task == nil || task.State() != scheduler.StateReady {
		t.Fatalf("chunk 1 should be ready")
	}
	if n := len(h.device.History()); n != 0 {
		t.Fatalf("device loaded %d clips while chunk 0 was pending", n)
	}
	if st := h.ctrl.Status(); !st.Waiting || st.State != StateIdle {
		t.Errorf("Status while waiting: got %+v", st)
	}

	release()
	waitEvent(t, h.ctrl, started(0))

	for i := 1; i < len(h.chunks); i++ {
		h.device.Finish()
		waitEvent(t, h.ctrl, started(i))
	}

	history := h.device.History()
	for i, clip := range history {
		if want := len(h.chunks[i].Text) * mock.BytesPerChar; clip.Size() != want {
			t.Errorf("clip %d: got %d bytes, want %d", i, clip.Size(), want)
		}
	}
}

func TestCompletion(t *testing.T) {
	h := newHarness(t, testDoc)
	h.device.AutoFinish(5 * time.Millisecond)

	h.ctrl.Play(0)

	e := waitEvent(t, h.ctrl, ofType(EventCompleted))
	if e.Chunk != 2 {
		t.Errorf("Completed chunk: got %d, want 2", e.Chunk)
	}
	e = waitEvent(t, h.ctrl, ofType(EventStateChanged))
	if e.State != StateIdle {
		t.Errorf("state after completion: got %s, want idle", e.State)
	}
	if st := h.ctrl.Status(); st.SessionID != "" || st.State != StateIdle {
		t.Errorf("Status after completion: got %+v", st)
	}
	if _, _, ok := h.ctrl.Position(); ok {
		t.Error("Position reported a session after completion")
	}
}

func TestFailedChunkBlocksUntilRegenerated(t *testing.T) {
	h := newHarness(t, testDoc)
	boom := errors.New("quota exceeded")
	h.gw.SetFailure(h.chunks[1].Text, boom)

	h.ctrl.Play(0)
	waitEvent(t, h.ctrl, started(0))
	h.device.Finish()

	e := waitEvent(t, h.ctrl, ofType(EventChunkFailed))
	if e.Chunk != 1 {
		t.Errorf("ChunkFailed chunk: got %d, want 1", e.Chunk)
	}
	var cerr *scheduler.ChunkError
	if !errors.As(e.Err, &cerr) || !errors.Is(e.Err, boom) {
		t.Errorf("ChunkFailed error: got %v", e.Err)
	}

	// The failure is reported once and playback keeps waiting.
	time.Sleep(30 * time.Millisecond)
	select {
	case e := <-h.ctrl.Events():
		if e.Type == EventChunkFailed {
			t.Error("ChunkFailed reported twice for the same task")
		}
	default:
	}
	if st := h.ctrl.Status(); !st.Waiting || st.ChunkIndex != 1 || st.State != StatePlaying {
		t.Errorf("Status on failed chunk: got %+v", st)
	}

	h.gw.ClearFailure(h.chunks[1].Text)
	if err := h.sched.Regenerate(1); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	waitEvent(t, h.ctrl, started(1))
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t, testDoc)

	if err := h.ctrl.Pause(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Pause without session: got %v, want ErrInvalidState", err)
	}

	h.ctrl.Play(0)
	waitEvent(t, h.ctrl, started(0))

	if err := h.ctrl.Resume(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Resume while playing: got %v, want ErrInvalidState", err)
	}
	if err := h.ctrl.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if h.device.State() != audio.StatePaused {
		t.Errorf("device state: got %s, want paused", h.device.State())
	}
	if err := h.ctrl.Pause(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Pause: got %v, want ErrInvalidState", err)
	}
	if st := h.ctrl.Status(); st.State != StatePaused {
		t.Errorf("Status: got %s, want paused", st.State)
	}

	if err := h.ctrl.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if h.device.State() != audio.StatePlaying {
		t.Errorf("device state: got %s, want playing", h.device.State())
	}
}

func TestPauseWhileWaiting(t *testing.T) {
	h := newHarness(t, testDoc)
	release := h.gw.Gate(h.chunks[1].Text)
	defer release()

	h.ctrl.Play(0)
	waitEvent(t, h.ctrl, started(0))
	h.device.Finish()

	// Now buffering chunk 1.
	time.Sleep(20 * time.Millisecond)
	if err := h.ctrl.Pause(); err != nil {
		t.Fatalf("Pause while waiting: %v", err)
	}
	release()

	time.Sleep(50 * time.Millisecond)
	if n := len(h.device.History()); n != 1 {
		t.Errorf("paused session started a chunk: %d clips loaded", n)
	}

	if err := h.ctrl.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitEvent(t, h.ctrl, started(1))
}

// eventually polls cond until it holds or a deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPausedSessionNeverStartsChunk(t *testing.T) {
	h := newHarness(t, testDoc)
	release := h.gw.Gate(h.chunks[1].Text)
	defer release()

	h.ctrl.Play(0)
	waitEvent(t, h.ctrl, started(0))
	h.device.Finish()
	eventually(t, "chunk 1 wait", func() bool {
		st := h.ctrl.Status()
		return st.Waiting && st.ChunkIndex == 1
	})

	if err := h.ctrl.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	release()
	eventually(t, "chunk 1 audio", func() bool {
		task := h.sched.Task(1)
		return task != nil && task.State() == scheduler.StateReady
	})

	// Run the start step the way the loop does right after seeing the
	// chunk become ready.
	h.ctrl.mu.Lock()
	s := h.ctrl.sess
	h.ctrl.mu.Unlock()

	started, alive := h.ctrl.startReady(context.Background(), s)
	if started || !alive {
		t.Errorf("startReady on paused session: got started=%v alive=%v, want false, true", started, alive)
	}
	if st := h.ctrl.Status(); st.State != StatePaused || !st.Waiting {
		t.Errorf("Status: got %+v, want paused and waiting", st)
	}
	if n := len(h.device.History()); n != 1 {
		t.Errorf("clips loaded: got %d, want 1", n)
	}
}

func TestTerminalEventsSurviveFullBuffer(t *testing.T) {
	h := newHarness(t, testDoc)
	h.device.AutoFinish(2 * time.Millisecond)

	for i := 0; i < eventBufferSize; i++ {
		h.ctrl.events <- Event{Type: EventStateChanged, Chunk: -1}
	}

	h.ctrl.Play(0)
	eventually(t, "completion", func() bool {
		return h.ctrl.Status().SessionID == "" && len(h.device.History()) == len(h.chunks)
	})

	found := false
	for n := len(h.ctrl.events); n > 0; n-- {
		if e := <-h.ctrl.events; e.Type == EventCompleted {
			found = true
		}
	}
	if !found {
		t.Error("EventCompleted dropped from a full event buffer")
	}
}

func TestEmitEvictsOldestNonTerminal(t *testing.T) {
	h := newHarness(t, testDoc)

	h.ctrl.events <- Event{Type: EventPlaybackError, Chunk: 7}
	for i := 1; i < eventBufferSize; i++ {
		h.ctrl.events <- Event{Type: EventChunkStarted, Chunk: i}
	}

	h.ctrl.emit(Event{Type: EventChunkStarted, Chunk: 99})
	h.ctrl.emit(Event{Type: EventCompleted, Chunk: 2})

	var got []Event
	for n := len(h.ctrl.events); n > 0; n-- {
		got = append(got, <-h.ctrl.events)
	}
	if len(got) != eventBufferSize {
		t.Fatalf("queued events: got %d, want %d", len(got), eventBufferSize)
	}
	if got[0].Type != EventPlaybackError {
		t.Errorf("first event: got %s, want %s", got[0].Type, EventPlaybackError)
	}
	if got[1].Chunk != 2 {
		t.Errorf("second event chunk: got %d, want 2", got[1].Chunk)
	}
	if last := got[len(got)-1]; last.Type != EventCompleted {
		t.Errorf("last event: got %s, want %s", last.Type, EventCompleted)
	}
	for _, e := range got {
		if e.Chunk == 99 {
			t.Error("non-terminal event queued into a full buffer")
		}
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, testDoc)

	// Stop without a session is a no-op.
	h.ctrl.Stop()

	h.ctrl.Play(0)
	waitEvent(t, h.ctrl, started(0))
	h.sched.Wait()

	h.ctrl.Stop()
	e := waitEvent(t, h.ctrl, ofType(EventStateChanged))
	if e.State != StateStopped {
		t.Errorf("first state after Stop: got %s, want stopped", e.State)
	}
	e = waitEvent(t, h.ctrl, ofType(EventStateChanged))
	if e.State != StateIdle {
		t.Errorf("second state after Stop: got %s, want idle", e.State)
	}

	if h.device.State() != audio.StateStopped {
		t.Errorf("device state: got %s, want stopped", h.device.State())
	}
	if h.sched.Task(0) != nil {
		t.Error("generation still scheduled after Stop")
	}
	if st := h.sched.Stats(); st.Retained != 0 {
		t.Errorf("retained audio after Stop: got %d, want 0", st.Retained)
	}

	h.ctrl.Stop()
}

func TestPlayReplacesSession(t *testing.T) {
	h := newHarness(t, testDoc)

	h.ctrl.Play(0)
	first := waitEvent(t, h.ctrl, started(0))

	h.ctrl.Play(h.chunks[2].Start)
	second := waitEvent(t, h.ctrl, started(2))
	if first.SessionID == second.SessionID {
		t.Error("Play reused the previous session")
	}
}

func TestSeekKeepsGeneratedAudio(t *testing.T) {
	h := newHarness(t, testDoc)

	h.ctrl.Play(0)
	waitEvent(t, h.ctrl, started(0))
	h.sched.Wait()

	if err := h.ctrl.Seek(h.chunks[2].Start); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	waitEvent(t, h.ctrl, started(2))

	if err := h.ctrl.Seek(0); err != nil {
		t.Fatalf("Seek back: %v", err)
	}
	waitEvent(t, h.ctrl, started(0))

	for _, c := range h.chunks {
		if n := h.gw.Calls(c.Text); n != 1 {
			t.Errorf("chunk %d synthesized %d times, want 1", c.Index, n)
		}
	}
}

func TestSeekWhilePausedResumes(t *testing.T) {
	h := newHarness(t, testDoc)

	h.ctrl.Play(0)
	waitEvent(t, h.ctrl, started(0))
	h.ctrl.Pause()

	h.ctrl.Seek(h.chunks[1].Start)
	waitEvent(t, h.ctrl, started(1))
	if st := h.ctrl.Status(); st.State != StatePlaying {
		t.Errorf("state after seek: got %s, want playing", st.State)
	}
}

func TestSeekWithoutSessionPlays(t *testing.T) {
	h := newHarness(t, testDoc)

	h.ctrl.Seek(h.chunks[1].Start)
	waitEvent(t, h.ctrl, started(1))
}

func TestDeviceErrorEndsSession(t *testing.T) {
	h := newHarness(t, testDoc)
	unplugged := errors.New("device unplugged")

	h.ctrl.Play(0)
	waitEvent(t, h.ctrl, started(0))
	h.device.Fail(unplugged)

	e := waitEvent(t, h.ctrl, ofType(EventPlaybackError))
	var derr *DeviceError
	if !errors.As(e.Err, &derr) {
		t.Fatalf("PlaybackError: got %v, want *DeviceError", e.Err)
	}
	if derr.Chunk != 0 || !errors.Is(derr, unplugged) {
		t.Errorf("DeviceError: got %+v", derr)
	}
	if st := h.ctrl.Status(); st.State != StateIdle || st.SessionID != "" {
		t.Errorf("Status after device error: got %+v", st)
	}
}

func TestLoadErrorEndsSession(t *testing.T) {
	h := newHarness(t, testDoc)
	h.device.FailOn("load", errors.New("bad format"))

	h.ctrl.Play(0)

	e := waitEvent(t, h.ctrl, ofType(EventPlaybackError))
	var derr *DeviceError
	if !errors.As(e.Err, &derr) || derr.Op != "load" {
		t.Errorf("PlaybackError: got %v", e.Err)
	}
}

func TestPosition(t *testing.T) {
	h := newHarness(t, testDoc)
	release := h.gw.Gate(h.chunks[0].Text)

	h.ctrl.Play(0)
	h.device.SetPosition(0.9)
	if chunk, frac, ok := h.ctrl.Position(); !ok || chunk != 0 || frac != 0 {
		t.Errorf("Position while waiting: got %d, %v, %v", chunk, frac, ok)
	}

	release()
	waitEvent(t, h.ctrl, started(0))
	h.device.SetPosition(0.5)
	if chunk, frac, ok := h.ctrl.Position(); !ok || chunk != 0 || frac != 0.5 {
		t.Errorf("Position: got %d, %v, %v", chunk, frac, ok)
	}
}

func TestEmptyDocument(t *testing.T) {
	h := newHarness(t, "   \n")

	if err := h.ctrl.Play(0); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if st := h.ctrl.Status(); st.State != StateIdle || st.SessionID != "" {
		t.Errorf("Status: got %+v", st)
	}
	if h.sched.Task(0) != nil {
		t.Error("empty document scheduled generation")
	}
	if h.gw.TotalCalls() != 0 {
		t.Errorf("gateway called %d times", h.gw.TotalCalls())
	}
}
