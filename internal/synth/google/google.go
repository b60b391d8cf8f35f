// Package google implements a synthesis gateway on the Google Cloud
// Text-to-Speech REST API.
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

const (
	// DefaultBaseURL is the public Text-to-Speech endpoint.
	DefaultBaseURL = "https://texttospeech.googleapis.com/v1"

	// MaxTextBytes is the service's per-request input limit.
	MaxTextBytes = 5000

	// DefaultSampleRate matches the default audio device rate.
	DefaultSampleRate = 24000

	defaultLanguage = "en-US"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("google: API key not configured")

// Config configures the Google gateway.
type Config struct {
	APIKey            string
	BaseURL           string        // Defaults to DefaultBaseURL
	SampleRate        int           // LINEAR16 output rate, defaults to DefaultSampleRate
	RequestsPerMinute int           // Client-side rate limit, defaults to 300
	Timeout           time.Duration // Per-request HTTP timeout; zero leaves requests bounded by ctx only
	HTTPClient        *http.Client
}

// Gateway calls text:synthesize once per chunk and returns raw PCM.
type Gateway struct {
	apiKey     string
	baseURL    string
	sampleRate int
	client     *http.Client
	limiter    *rate.Limiter
}

var (
	_ synth.Gateway     = (*Gateway)(nil)
	_ synth.VoiceLister = (*Gateway)(nil)
	_ synth.Formatter   = (*Gateway)(nil)
)

// New creates a Google gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 300
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Gateway{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		sampleRate: cfg.SampleRate,
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Name returns "google".
func (g *Gateway) Name() string {
	return "google"
}

// Format returns the configured LINEAR16 rate, always mono.
func (g *Gateway) Format() (sampleRate, channels int) {
	return g.sampleRate, 1
}

type synthesizeRequest struct {
	Input       input       `json:"input"`
	Voice       voiceParams `json:"voice"`
	AudioConfig audioConfig `json:"audioConfig"`
}

type input struct {
	Text string `json:"text"`
}

type voiceParams struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
	SSMLGender   string `json:"ssmlGender,omitempty"`
}

type audioConfig struct {
	AudioEncoding   string  `json:"audioEncoding"`
	SpeakingRate    float64 `json:"speakingRate"`
	Pitch           float64 `json:"pitch"`
	VolumeGainDb    float64 `json:"volumeGainDb"`
	SampleRateHertz int     `json:"sampleRateHertz"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize requests LINEAR16 audio for text and strips the WAV header
// the service wraps it in.
func (g *Gateway) Synthesize(ctx context.Context, text string, p synth.Params) (*synth.Audio, error) {
	if err := synth.CheckText(text, MaxTextBytes); err != nil {
		return nil, err
	}
	p = p.Normalize()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	body := synthesizeRequest{
		Input: input{Text: text},
		Voice: voiceParams{
			LanguageCode: languageCode(p.Voice),
			Name:         p.Voice.Name,
			SSMLGender:   p.Voice.Gender,
		},
		AudioConfig: audioConfig{
			AudioEncoding:   "LINEAR16",
			SpeakingRate:    p.Rate,
			Pitch:           p.Pitch,
			SampleRateHertz: g.sampleRate,
		},
	}

	var out synthesizeResponse
	if err := g.do(ctx, http.MethodPost, "/text:synthesize", nil, body, &out); err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google: decode audio content: %w", err)
	}
	pcm, sampleRate, channels := stripWAV(raw)
	if sampleRate == 0 {
		sampleRate, channels = g.sampleRate, 1
	}
	if len(pcm) == 0 {
		return nil, errors.New("google: empty audio content")
	}

	return synth.NewAudio(pcm, sampleRate, channels), nil
}

type voicesResponse struct {
	Voices []struct {
		LanguageCodes          []string `json:"languageCodes"`
		Name                   string   `json:"name"`
		SSMLGender             string   `json:"ssmlGender"`
		NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
	} `json:"voices"`
}

// Voices lists the voices the service offers.
func (g *Gateway) Voices(ctx context.Context) ([]synth.Voice, error) {
	var out voicesResponse
	if err := g.do(ctx, http.MethodGet, "/voices", nil, nil, &out); err != nil {
		return nil, err
	}

	voices := make([]synth.Voice, 0, len(out.Voices))
	for _, v := range out.Voices {
		lang := ""
		if len(v.LanguageCodes) > 0 {
			lang = v.LanguageCodes[0]
		}
		voices = append(voices, synth.Voice{
			Name:         v.Name,
			LanguageCode: lang,
			Gender:       v.SSMLGender,
		})
	}
	return voices, nil
}

func (g *Gateway) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", g.apiKey)
	endpoint := g.baseURL + path + "?" + query.Encode()

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("google: encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("google: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("google: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug("google api call", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("google: decode response: %w", err)
	}
	return nil
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := strings.TrimSpace(string(body))
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Error.Message != "" {
		msg = ae.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("google: %w: %s", synth.ErrUnauthorized, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("google: %w: %s", synth.ErrBadRequest, msg)
	default:
		return fmt.Errorf("google: status %d: %s", resp.StatusCode, msg)
	}
}

// languageCode returns the voice's language, deriving it from names such
// as "en-GB-Wavenet-A" when unset.
func languageCode(v synth.Voice) string {
	if v.LanguageCode != "" {
		return v.LanguageCode
	}
	if parts := strings.SplitN(v.Name, "-", 3); len(parts) == 3 {
		return parts[0] + "-" + parts[1]
	}
	return defaultLanguage
}

// stripWAV returns the sample data of a RIFF/WAVE file along with its
// sample rate and channel count. Input without a RIFF header is returned
// unchanged with a zero rate.
func stripWAV(b []byte) (pcm []byte, sampleRate, channels int) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return b, 0, 0
	}

	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if body+8 <= len(b) {
				channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
				sampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			}
		case "data":
			end := body + size
			if end > len(b) || size == 0 {
				end = len(b)
			}
			return b[body:end], sampleRate, channels
		}

		pos = body + size + size%2
	}
	return nil, sampleRate, channels
}
