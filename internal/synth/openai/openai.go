// Package openai implements a synthesis gateway on the OpenAI speech API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

const (
	// MaxTextBytes is the speech endpoint's input limit.
	MaxTextBytes = 4096

	// SampleRate of the endpoint's raw PCM output.
	SampleRate = 24000

	defaultModel = string(openai.TTSModel1)
	defaultVoice = string(openai.VoiceAlloy)
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: API key not configured")

// Config configures the OpenAI gateway.
type Config struct {
	APIKey  string
	BaseURL string // Optional, for compatible servers
	Model   string // Defaults to tts-1
}

// Gateway requests raw 24 kHz mono PCM from the speech endpoint.
type Gateway struct {
	client *openai.Client
	model  string
}

var (
	_ synth.Gateway     = (*Gateway)(nil)
	_ synth.VoiceLister = (*Gateway)(nil)
	_ synth.Formatter   = (*Gateway)(nil)
)

// New creates an OpenAI gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &Gateway{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
	}, nil
}

// Name returns "openai".
func (g *Gateway) Name() string {
	return "openai"
}

// Format returns the fixed output format of the PCM endpoint.
func (g *Gateway) Format() (sampleRate, channels int) {
	return SampleRate, 1
}

// Synthesize converts text to PCM. Pitch is not supported by the endpoint
// and is ignored.
func (g *Gateway) Synthesize(ctx context.Context, text string, p synth.Params) (*synth.Audio, error) {
	if err := synth.CheckText(text, MaxTextBytes); err != nil {
		return nil, err
	}
	p = p.Normalize()

	voice := p.Voice.Name
	if voice == "" {
		voice = defaultVoice
	}

	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(g.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          p.Rate,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapError(err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("openai: read audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("openai: empty audio response")
	}

	log.Debug("openai speech", "voice", voice, "model", g.model, "bytes", len(pcm))
	return synth.NewAudio(pcm, SampleRate, 1), nil
}

// Voices returns the endpoint's built-in voices. The API has no listing
// call, so the catalog is fixed.
func (g *Gateway) Voices(ctx context.Context) ([]synth.Voice, error) {
	names := []openai.SpeechVoice{
		openai.VoiceAlloy,
		openai.VoiceEcho,
		openai.VoiceFable,
		openai.VoiceOnyx,
		openai.VoiceNova,
		openai.VoiceShimmer,
	}
	voices := make([]synth.Voice, len(names))
	for i, n := range names {
		voices[i] = synth.Voice{Name: string(n)}
	}
	return voices, nil
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("openai: %w: %s", synth.ErrUnauthorized, apiErr.Message)
		case http.StatusBadRequest:
			return fmt.Errorf("openai: %w: %s", synth.ErrBadRequest, apiErr.Message)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("openai: %w: %v", synth.ErrUnauthorized, reqErr.Err)
		case http.StatusBadRequest:
			return fmt.Errorf("openai: %w: %v", synth.ErrBadRequest, reqErr.Err)
		}
	}
	return fmt.Errorf("openai: speech: %w", err)
}
