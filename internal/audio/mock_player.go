package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

// MockDevice is a playback device for tests. It makes no sound; tests end
// clips with Finish, raise playback errors with Fail and set the reported
// position with SetPosition. With AutoFinish set, every clip ends on its
// own after the given delay.
type MockDevice struct {
	mu       sync.Mutex
	state    PlayerState
	loaded   *synth.Audio
	history  []*synth.Audio
	position float64
	failOps  map[string]error
	auto     time.Duration
	autoGen  int
	onEnded  func()
	onError  func(error)

	loadCount  int
	playCount  int
	pauseCount int
	stopCount  int
}

// NewMockDevice creates a stopped mock device.
func NewMockDevice() *MockDevice {
	return &MockDevice{failOps: make(map[string]error)}
}

// OnEnded registers the end-of-clip callback.
func (m *MockDevice) OnEnded(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnded = fn
}

// OnError registers the playback error callback.
func (m *MockDevice) OnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// Load records a as the current clip.
func (m *MockDevice) Load(a *synth.Audio) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadCount++
	if err := m.failOps["load"]; err != nil {
		return err
	}
	if a == nil || a.Size() == 0 {
		return ErrEmptyAudio
	}
	m.autoGen++
	m.loaded = a
	m.history = append(m.history, a)
	m.position = 0
	m.state = StateLoaded
	return nil
}

// Play starts or resumes the current clip.
func (m *MockDevice) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playCount++
	if err := m.failOps["play"]; err != nil {
		return err
	}
	switch m.state {
	case StateLoaded:
		m.state = StatePlaying
		if m.auto > 0 {
			gen := m.autoGen
			time.AfterFunc(m.auto, func() { m.autoEnd(gen) })
		}
	case StatePaused:
		m.state = StatePlaying
	case StatePlaying:
	default:
		return ErrNothingLoaded
	}
	return nil
}

// Pause freezes the current clip.
func (m *MockDevice) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pauseCount++
	if err := m.failOps["pause"]; err != nil {
		return err
	}
	if m.state != StatePlaying {
		return fmt.Errorf("cannot pause: device is %s", m.state)
	}
	m.state = StatePaused
	return nil
}

// Stop drops the current clip.
func (m *MockDevice) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopCount++
	m.autoGen++
	m.loaded = nil
	m.position = 0
	m.state = StateStopped
	return nil
}

// FractionalPosition returns the position set by SetPosition.
func (m *MockDevice) FractionalPosition() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Test control methods

// Finish ends the playing clip as if it reached its end. It reports
// whether a clip was playing.
func (m *MockDevice) Finish() bool {
	m.mu.Lock()
	if m.state != StatePlaying {
		m.mu.Unlock()
		return false
	}
	m.state = StateStopped
	m.position = 1
	fn := m.onEnded
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

func (m *MockDevice) autoEnd(gen int) {
	m.mu.Lock()
	stale := gen != m.autoGen
	m.mu.Unlock()
	if !stale {
		m.Finish()
	}
}

// Fail reports err through the OnError callback.
func (m *MockDevice) Fail(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

// FailOn makes the named operation ("load", "play" or "pause") return err.
// A nil err clears the failure.
func (m *MockDevice) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOps, op)
		return
	}
	m.failOps[op] = err
}

// AutoFinish makes every clip end d after it starts playing. Zero turns
// it off.
func (m *MockDevice) AutoFinish(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auto = d
}

// SetPosition sets the fraction reported by FractionalPosition.
func (m *MockDevice) SetPosition(f float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = f
}

// State returns the device state.
func (m *MockDevice) State() PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loaded returns the current clip.
func (m *MockDevice) Loaded() *synth.Audio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// History returns every clip loaded so far, in order.
func (m *MockDevice) History() []*synth.Audio {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*synth.Audio, len(m.history))
	copy(out, m.history)
	return out
}

// MockDeviceMetrics counts device calls.
type MockDeviceMetrics struct {
	LoadCount  int
	PlayCount  int
	PauseCount int
	StopCount  int
}

// Metrics returns call counts.
func (m *MockDevice) Metrics() MockDeviceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MockDeviceMetrics{
		LoadCount:  m.loadCount,
		PlayCount:  m.playCount,
		PauseCount: m.pauseCount,
		StopCount:  m.stopCount,
	}
}
