package synth

import (
	"sync"
	"time"
)

// Audio is a synthesized clip of 16-bit little-endian PCM.
//
// An Audio is owned by exactly one holder at a time. Release drops the
// sample data so a cancelled generation pass does not keep megabytes of
// PCM alive; it is safe to call more than once.
type Audio struct {
	mu         sync.RWMutex
	data       []byte
	sampleRate int
	channels   int
	released   bool
}

// NewAudio wraps PCM data. The slice is not copied.
func NewAudio(data []byte, sampleRate, channels int) *Audio {
	if channels <= 0 {
		channels = 1
	}
	return &Audio{
		data:       data,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Bytes returns the PCM data, or nil once released.
func (a *Audio) Bytes() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data
}

// Size returns the length of the PCM data in bytes.
func (a *Audio) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}

// SampleRate returns the sample rate in Hz.
func (a *Audio) SampleRate() int {
	return a.sampleRate
}

// Channels returns the channel count.
func (a *Audio) Channels() int {
	return a.channels
}

// Duration returns the playing time of the clip.
func (a *Audio) Duration() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return PCMDuration(len(a.data), a.sampleRate, a.channels)
}

// Release drops the PCM data.
func (a *Audio) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = nil
	a.released = true
}

// Released reports whether Release has been called.
func (a *Audio) Released() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.released
}

// PCMDuration computes the duration of size bytes of 16-bit PCM.
func PCMDuration(size, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSecond := sampleRate * channels * 2
	return time.Duration(float64(size) / float64(bytesPerSecond) * float64(time.Second))
}
