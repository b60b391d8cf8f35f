// Package mock provides an in-memory synthesis gateway for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

// SampleRate of the silence the mock produces.
const SampleRate = 24000

// BytesPerChar sets how much PCM the mock produces per byte of input text.
const BytesPerChar = 64

// Gateway is a synthesis gateway with scriptable delays, failures and gates.
// It is safe for concurrent use.
type Gateway struct {
	mu       sync.Mutex
	delay    time.Duration
	failures map[string]error
	gates    map[string]chan struct{}
	calls    map[string]int
	order    []string
	inFlight int
	peak     int
	voices   []synth.Voice
	rate     int
}

// New creates a mock gateway that succeeds immediately.
func New() *Gateway {
	return &Gateway{
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
		rate:     SampleRate,
		voices: []synth.Voice{
			{Name: "mock-en-US-A", LanguageCode: "en-US", Gender: "FEMALE"},
			{Name: "mock-en-US-B", LanguageCode: "en-US", Gender: "MALE"},
			{Name: "mock-en-GB-A", LanguageCode: "en-GB", Gender: "NEUTRAL"},
		},
	}
}

// Name returns "mock".
func (g *Gateway) Name() string {
	return "mock"
}

// Synthesize returns silence sized after the text, after honouring any
// configured delay, gate or failure for that text.
func (g *Gateway) Synthesize(ctx context.Context, text string, p synth.Params) (*synth.Audio, error) {
	g.mu.Lock()
	g.calls[text]++
	g.order = append(g.order, text)
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	delay := g.delay
	gate := g.gates[text]
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	err := g.failures[text]
	rate := g.rate
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return synth.NewAudio(make([]byte, len(text)*BytesPerChar), rate, 1), nil
}

// Format returns the sample rate and channel count of produced audio.
func (g *Gateway) Format() (sampleRate, channels int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rate, 1
}

// Voices returns a fixed voice list.
func (g *Gateway) Voices(ctx context.Context) ([]synth.Voice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]synth.Voice, len(g.voices))
	copy(out, g.voices)
	return out, nil
}

// Test control methods

// SetSampleRate changes the sample rate of produced audio.
func (g *Gateway) SetSampleRate(hz int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rate = hz
}

// SetDelay sets the simulated synthesis latency.
func (g *Gateway) SetDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

// SetFailure makes every synthesis of text fail with err.
func (g *Gateway) SetFailure(text string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[text] = err
}

// ClearFailure lets text synthesize normally again.
func (g *Gateway) ClearFailure(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, text)
}

// Gate blocks synthesis of text until the returned function is called.
func (g *Gateway) Gate(text string) (release func()) {
	ch := make(chan struct{})
	g.mu.Lock()
	g.gates[text] = ch
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(ch)
			g.mu.Lock()
			if g.gates[text] == ch {
				delete(g.gates, text)
			}
			g.mu.Unlock()
		})
	}
}

// Calls returns how many times text was synthesized.
func (g *Gateway) Calls(text string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[text]
}

// TotalCalls returns the number of Synthesize calls.
func (g *Gateway) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}

// Order returns the texts in the order synthesis started.
func (g *Gateway) Order() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// PeakConcurrency returns the highest number of simultaneous calls seen.
func (g *Gateway) PeakConcurrency() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}
