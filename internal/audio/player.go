package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

// PlayerState represents the current state of a device.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StateLoaded
	StatePlaying
	StatePaused
	StateClosed
)

// String returns the string representation of the state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Common player errors.
var (
	ErrEmptyAudio    = errors.New("audio data is empty")
	ErrNothingLoaded = errors.New("no audio loaded")
	ErrPlayerClosed  = errors.New("player is closed")
	ErrFormat        = errors.New("audio format does not match device")
)

// Player plays PCM clips through oto.
//
// oto allows a single context per process, so create one Player and reuse
// it for every clip.
type Player struct {
	context *oto.Context

	// Current clip; the stream owns a private copy of the PCM data so a
	// released synth.Audio cannot pull samples out from under oto.
	player *oto.Player
	stream *Stream

	state  atomic.Int32
	volume atomic.Uint64 // volume * 1e6

	// Wall-clock position tracking
	startTime  time.Time
	pausedAt   time.Duration
	totalPause time.Duration

	// gen increments on every Load and Stop so a stale monitor goroutine
	// never reports the end of a clip that is no longer current.
	gen atomic.Uint64

	onEnded func()
	onError func(error)

	mu      sync.RWMutex
	stateMu sync.Mutex

	sampleRate int
	channels   int
	bufferSize time.Duration
	pollEvery  time.Duration
}

// Stream is a loaded clip kept alive for the duration of playback. oto
// reads it from its own goroutine, so all access goes through mu.
type Stream struct {
	data     []byte
	reader   *bytes.Reader
	duration time.Duration

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int           // Device rate in Hz
	Channels   int           // 1 = mono, 2 = stereo
	BufferSize time.Duration // oto buffer; zero lets oto choose
}

// DefaultPlayerConfig returns the default player configuration. 24 kHz
// mono matches what the synthesis gateways produce.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 24000,
		Channels:   1,
		BufferSize: 100 * time.Millisecond,
	}
}

// NewPlayer opens the audio device.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	p := &Player{
		context:    ctx,
		sampleRate: config.SampleRate,
		channels:   config.Channels,
		bufferSize: config.BufferSize,
		pollEvery:  20 * time.Millisecond,
	}
	p.state.Store(int32(StateStopped))
	p.volume.Store(1_000_000)

	log.Debug("audio device opened", "sampleRate", config.SampleRate, "channels", config.Channels)
	return p, nil
}

func validateConfig(config PlayerConfig) error {
	switch config.SampleRate {
	case 8000, 16000, 22050, 24000, 44100, 48000:
	default:
		return fmt.Errorf("unsupported sample rate %d Hz", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	return nil
}

// OnEnded registers the callback fired when a clip plays to its end.
func (p *Player) OnEnded(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnded = fn
}

// OnError registers the callback fired when oto reports a playback error.
func (p *Player) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

// Load replaces the current clip with a, stopped at its start.
func (p *Player) Load(a *synth.Audio) error {
	data := a.Bytes()
	if len(data) == 0 {
		return ErrEmptyAudio
	}
	if a.SampleRate() != p.sampleRate || a.Channels() != p.channels {
		return fmt.Errorf("%w: clip is %d Hz/%d ch, device is %d Hz/%d ch",
			ErrFormat, a.SampleRate(), a.Channels(), p.sampleRate, p.channels)
	}

	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if PlayerState(p.state.Load()) == StateClosed {
		return ErrPlayerClosed
	}
	p.stopInternal()

	stream := newStream(data, p.sampleRate, p.channels)
	player := p.context.NewPlayer(stream)
	player.SetVolume(p.getVolume())

	p.mu.Lock()
	p.player = player
	p.stream = stream
	p.pausedAt = 0
	p.totalPause = 0
	p.mu.Unlock()

	p.state.Store(int32(StateLoaded))
	return nil
}

// Play starts a loaded clip or resumes a paused one.
func (p *Player) Play() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	switch PlayerState(p.state.Load()) {
	case StateLoaded:
		p.mu.Lock()
		p.startTime = time.Now()
		p.player.Play()
		p.mu.Unlock()

		p.state.Store(int32(StatePlaying))
		go p.monitor(p.gen.Load())
		return nil

	case StatePaused:
		p.mu.Lock()
		p.totalPause += time.Since(p.startTime.Add(p.pausedAt + p.totalPause))
		p.player.Play()
		p.mu.Unlock()

		p.state.Store(int32(StatePlaying))
		return nil

	case StatePlaying:
		return nil
	case StateClosed:
		return ErrPlayerClosed
	default:
		return ErrNothingLoaded
	}
}

// Pause freezes playback at the current position.
func (p *Player) Pause() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	state := PlayerState(p.state.Load())
	if state != StatePlaying {
		return fmt.Errorf("cannot pause: player is %s", state)
	}

	p.mu.Lock()
	p.player.Pause()
	p.pausedAt = p.elapsedInternal()
	p.mu.Unlock()

	p.state.Store(int32(StatePaused))
	return nil
}

// Stop halts playback and drops the clip. It never fires OnEnded.
func (p *Player) Stop() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	p.stopInternal()
	return nil
}

func (p *Player) stopInternal() {
	p.gen.Add(1)

	state := PlayerState(p.state.Load())
	if state == StateStopped || state == StateClosed {
		return
	}

	p.mu.Lock()
	if p.player != nil {
		p.player.Pause()
		if err := p.player.Close(); err != nil {
			log.Debug("closing oto player", "error", err)
		}
		p.player = nil
	}
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
	p.pausedAt = 0
	p.totalPause = 0
	p.mu.Unlock()

	p.state.Store(int32(StateStopped))
}

// monitor waits for the clip loaded at generation gen to finish.
func (p *Player) monitor(gen uint64) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for range ticker.C {
		if p.gen.Load() != gen {
			return
		}

		p.mu.RLock()
		player := p.player
		stream := p.stream
		onEnded, onError := p.onEnded, p.onError
		p.mu.RUnlock()

		if player == nil || stream == nil {
			return
		}
		if err := player.Err(); err != nil {
			if p.gen.Load() == gen && onError != nil {
				onError(err)
			}
			return
		}
		if PlayerState(p.state.Load()) != StatePlaying {
			continue
		}
		if !player.IsPlaying() && stream.Remaining() == 0 {
			if p.gen.Load() == gen && onEnded != nil {
				onEnded()
			}
			return
		}
	}
}

// FractionalPosition returns the played fraction of the current clip.
func (p *Player) FractionalPosition() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stream == nil || p.stream.duration <= 0 {
		return 0
	}
	f := float64(p.elapsedInternal()) / float64(p.stream.duration)
	if f > 1 {
		f = 1
	}
	return f
}

// Position returns the elapsed time of the current clip.
func (p *Player) Position() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.elapsedInternal()
}

func (p *Player) elapsedInternal() time.Duration {
	switch PlayerState(p.state.Load()) {
	case StatePlaying:
		elapsed := time.Since(p.startTime) - p.totalPause
		if p.stream != nil && elapsed > p.stream.duration {
			elapsed = p.stream.duration
		}
		return elapsed
	case StatePaused:
		return p.pausedAt
	default:
		return 0
	}
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	p.volume.Store(uint64(volume * 1_000_000))

	p.mu.RLock()
	if p.player != nil {
		p.player.SetVolume(volume)
	}
	p.mu.RUnlock()
	return nil
}

func (p *Player) getVolume() float64 {
	return float64(p.volume.Load()) / 1_000_000
}

// GetState returns the current player state.
func (p *Player) GetState() PlayerState {
	return PlayerState(p.state.Load())
}

// Close stops playback. The oto context stays alive for the process.
func (p *Player) Close() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	p.stopInternal()
	p.state.Store(int32(StateClosed))
	return nil
}

func newStream(src []byte, sampleRate, channels int) *Stream {
	data := make([]byte, len(src))
	copy(data, src)
	return &Stream{
		data:     data,
		reader:   bytes.NewReader(data),
		duration: synth.PCMDuration(len(data), sampleRate, channels),
	}
}

// Read feeds oto. It reports EOF once the stream is closed.
func (s *Stream) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	return s.reader.Read(b)
}

// Remaining returns how many bytes oto has not yet read.
func (s *Stream) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return s.reader.Len()
}

// Duration returns the playing time of the stream.
func (s *Stream) Duration() time.Duration {
	return s.duration
}

// Close releases the stream's data.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		s.data = nil
	})
}

var _ io.Reader = (*Stream)(nil)
