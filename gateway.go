package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/synth"
	"github.com/dgnsrekt/readaloud/internal/synth/google"
	"github.com/dgnsrekt/readaloud/internal/synth/openai"
	"github.com/dgnsrekt/readaloud/internal/voice"
)

const voiceListTimeout = 15 * time.Second

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newBaseGateway creates the configured synthesis service client.
func newBaseGateway(cfg config.Config) (synth.Gateway, error) {
	switch cfg.Gateway {
	case "google":
		return google.New(google.Config{
			APIKey:            cfg.Google.APIKey,
			BaseURL:           cfg.Google.BaseURL,
			SampleRate:        cfg.Audio.SampleRate,
			RequestsPerMinute: cfg.Google.RequestsPerMinute,
			Timeout:           cfg.Google.Timeout,
		})
	case "openai":
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
	default:
		return nil, fmt.Errorf("unknown gateway %q", cfg.Gateway)
	}
}

// newGateway creates the gateway used for reading, behind the audio cache
// when it is enabled. The closer releases the cache.
func newGateway(cfg config.Config) (synth.Gateway, io.Closer, error) {
	gw, err := newBaseGateway(cfg)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Cache.Enabled {
		return gw, nopCloser{}, nil
	}

	store, err := cache.NewManager(cfg.Cache.ManagerConfig())
	if err != nil {
		log.Warn("Audio cache disabled", "error", err)
		return gw, nopCloser{}, nil
	}
	return synth.NewCached(gw, store), store, nil
}

// deviceSampleRate returns the rate the configured gateway produces.
func deviceSampleRate(cfg config.Config) int {
	if cfg.Gateway == "openai" {
		return openai.SampleRate
	}
	return cfg.Audio.SampleRate
}

func newDevice(cfg config.Config) (*audio.Player, error) {
	p, err := audio.NewPlayer(audio.PlayerConfig{
		SampleRate: deviceSampleRate(cfg),
		Channels:   1,
		BufferSize: cfg.Audio.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open audio device: %w", err)
	}
	if err := p.SetVolume(cfg.Audio.Volume); err != nil {
		return nil, err
	}
	return p, nil
}

// resolveParams turns the configured voice query into a concrete voice.
// When the catalog cannot be fetched the query is used as a voice name.
func resolveParams(ctx context.Context, gw synth.Gateway, cfg config.Config) (synth.Params, error) {
	p := cfg.Params()
	if p.Voice.Name == "" {
		return p, nil
	}

	lister, ok := gw.(synth.VoiceLister)
	if !ok {
		return p, nil
	}

	ctx, cancel := context.WithTimeout(ctx, voiceListTimeout)
	defer cancel()

	voices, err := lister.Voices(ctx)
	if err != nil {
		log.Warn("Could not list voices, using name as given", "voice", p.Voice.Name, "error", err)
		return p, nil
	}

	v, err := voice.Select(p.Voice.Name, voices)
	if errors.Is(err, voice.ErrNoMatch) {
		return p, fmt.Errorf("%w; see readaloud voices", err)
	}
	if err != nil {
		return p, err
	}
	log.Debug("Selected voice", "query", p.Voice.Name, "voice", v.Name, "language", v.LanguageCode)
	p.Voice = v
	return p, nil
}
