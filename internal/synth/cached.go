package synth

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/charmbracelet/log"
)

// Store is the subset of a byte cache used by Cached.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Cached wraps a gateway with a byte cache keyed by gateway, output
// format, text and voice parameters. Re-reading a document then costs no
// requests.
type Cached struct {
	gw    Gateway
	store Store
}

// NewCached returns gw decorated with store.
func NewCached(gw Gateway, store Store) *Cached {
	return &Cached{gw: gw, store: store}
}

// Name returns the wrapped gateway's name.
func (c *Cached) Name() string {
	return c.gw.Name()
}

// Format reports the wrapped gateway's output format, or zeros when it
// does not declare one.
func (c *Cached) Format() (sampleRate, channels int) {
	if f, ok := c.gw.(Formatter); ok {
		return f.Format()
	}
	return 0, 0
}

// Voices delegates to the wrapped gateway when it can list voices.
func (c *Cached) Voices(ctx context.Context) ([]Voice, error) {
	vl, ok := c.gw.(VoiceLister)
	if !ok {
		return nil, fmt.Errorf("gateway %s cannot list voices", c.gw.Name())
	}
	return vl.Voices(ctx)
}

// Synthesize returns cached audio when present and otherwise calls the
// wrapped gateway, storing its result. Cache write failures are logged and
// otherwise ignored.
func (c *Cached) Synthesize(ctx context.Context, text string, p Params) (*Audio, error) {
	rate, channels := c.Format()
	key := CacheKey(c.gw.Name(), rate, channels, text, p)

	if blob, ok := c.store.Get(key); ok {
		a, err := decodeAudio(blob)
		switch {
		case err != nil:
			log.Warn("discarding corrupt cache entry", "key", key[:8], "error", err)
		case rate > 0 && (a.SampleRate() != rate || a.Channels() != channels):
			log.Warn("discarding cache entry in another format", "key", key[:8],
				"cached", fmt.Sprintf("%d Hz/%d ch", a.SampleRate(), a.Channels()),
				"want", fmt.Sprintf("%d Hz/%d ch", rate, channels))
		default:
			log.Debug("synthesis cache hit", "gateway", c.gw.Name(), "key", key[:8], "bytes", a.Size())
			return a, nil
		}
	}

	a, err := c.gw.Synthesize(ctx, text, p)
	if err != nil {
		return nil, err
	}

	if err := c.store.Put(key, encodeAudio(a)); err != nil {
		log.Warn("failed to cache audio", "key", key[:8], "error", err)
	}
	return a, nil
}

// CacheKey derives a stable cache key for a synthesis request. sampleRate
// and channels describe the gateway's output; zero means undeclared.
func CacheKey(gateway string, sampleRate, channels int, text string, p Params) string {
	p = p.Normalize()
	data := fmt.Sprintf("%s|%d|%d|%s|%s|%.2f|%.1f", gateway, sampleRate, channels, p.Voice.Name, text, p.Rate, p.Pitch)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

const audioHeaderSize = 6

// encodeAudio prefixes a copy of the PCM data with its sample rate and
// channel count so the clip can be rebuilt from the cache alone.
func encodeAudio(a *Audio) []byte {
	data := a.Bytes()
	blob := make([]byte, audioHeaderSize+len(data))
	binary.LittleEndian.PutUint32(blob[0:4], uint32(a.SampleRate()))
	binary.LittleEndian.PutUint16(blob[4:6], uint16(a.Channels()))
	copy(blob[audioHeaderSize:], data)
	return blob
}

func decodeAudio(blob []byte) (*Audio, error) {
	if len(blob) < audioHeaderSize {
		return nil, fmt.Errorf("cache entry too short: %d bytes", len(blob))
	}
	rate := int(binary.LittleEndian.Uint32(blob[0:4]))
	channels := int(binary.LittleEndian.Uint16(blob[4:6]))
	if rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("cache entry has invalid format %d Hz/%d ch", rate, channels)
	}
	data := make([]byte, len(blob)-audioHeaderSize)
	copy(data, blob[audioHeaderSize:])
	return NewAudio(data, rate, channels), nil
}
