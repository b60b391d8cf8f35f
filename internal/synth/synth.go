// Package synth defines the contract between the playback engine and remote
// text-to-speech services.
//
// A Gateway turns one chunk of text into playable PCM audio. Gateways accept
// only small payloads per call; the engine never sends more than one chunk
// per request. Implementations live in the google, openai and mock
// subpackages.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by gateways.
var (
	// ErrEmptyText is returned when asked to synthesize blank text.
	ErrEmptyText = errors.New("text is empty")

	// ErrTextTooLong is returned when the text exceeds the gateway's
	// per-request limit.
	ErrTextTooLong = errors.New("text exceeds request size limit")

	// ErrUnauthorized is returned when the service rejects the credentials.
	ErrUnauthorized = errors.New("invalid API key or insufficient permissions")

	// ErrBadRequest is returned when the service rejects the request itself.
	ErrBadRequest = errors.New("invalid request parameters")

	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("invalid voice parameters")
)

// Speaking rate bounds accepted by the synthesis services.
const (
	MinRate     = 0.25
	MaxRate     = 4.0
	DefaultRate = 1.0

	MinPitch = -20.0
	MaxPitch = 20.0
)

// Gateway converts text into audio.
type Gateway interface {
	// Synthesize converts text to 16-bit little-endian PCM audio.
	// Implementations must honour ctx cancellation.
	Synthesize(ctx context.Context, text string, p Params) (*Audio, error)

	// Name identifies the gateway in logs and cache keys.
	Name() string
}

// Formatter is implemented by gateways whose output format is fixed when
// they are created. Cached keys entries on it.
type Formatter interface {
	Format() (sampleRate, channels int)
}

// VoiceLister is implemented by gateways that can enumerate their voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// Voice identifies a synthesis voice. The engine treats it as opaque.
type Voice struct {
	Name         string // Voice identifier, e.g. "en-US-Wavenet-D"
	LanguageCode string // BCP-47 language code
	Gender       string // SSML gender as reported by the service
}

// String returns the voice name, or "default" for the zero voice.
func (v Voice) String() string {
	if v.Name == "" {
		return "default"
	}
	return v.Name
}

// Params carries per-request synthesis parameters.
type Params struct {
	Voice Voice
	Rate  float64 // Speaking rate, 1.0 is normal
	Pitch float64 // Semitones, 0 is normal
}

// DefaultParams returns parameters for the service's default voice at
// normal speed.
func DefaultParams() Params {
	return Params{Rate: DefaultRate}
}

// Normalize fills in the default rate and clamps values into the range the
// services accept.
func (p Params) Normalize() Params {
	if p.Rate == 0 {
		p.Rate = DefaultRate
	}
	p.Rate = clamp(p.Rate, MinRate, MaxRate)
	p.Pitch = clamp(p.Pitch, MinPitch, MaxPitch)
	return p
}

// Validate reports parameters outside the accepted ranges.
func (p Params) Validate() error {
	if p.Rate != 0 && (p.Rate < MinRate || p.Rate > MaxRate) {
		return fmt.Errorf("%w: rate %.2f outside %.2f-%.2f", ErrInvalidParams, p.Rate, MinRate, MaxRate)
	}
	if p.Pitch < MinPitch || p.Pitch > MaxPitch {
		return fmt.Errorf("%w: pitch %.1f outside %.0f-%.0f", ErrInvalidParams, p.Pitch, MinPitch, MaxPitch)
	}
	return nil
}

// CheckText validates text against a gateway's byte limit.
func CheckText(text string, limit int) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if limit > 0 && len(text) > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTextTooLong, len(text), limit)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
