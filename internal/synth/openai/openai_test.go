package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	gw, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gw
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("got %v, want ErrMissingAPIKey", err)
	}
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{0, 1, 0, 2, 0, 3}
	var body map[string]any

	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization: got %q", got)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pcm)
	})

	p := synth.Params{Rate: 1.5}
	audio, err := gw.Synthesize(context.Background(), "Hello world.", p)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if string(audio.Bytes()) != string(pcm) {
		t.Errorf("pcm: got %v, want %v", audio.Bytes(), pcm)
	}
	if audio.SampleRate() != SampleRate {
		t.Errorf("sample rate: got %d, want %d", audio.SampleRate(), SampleRate)
	}
	if body["response_format"] != "pcm" {
		t.Errorf("response_format: got %v, want pcm", body["response_format"])
	}
	if body["voice"] != defaultVoice {
		t.Errorf("voice: got %v, want %s", body["voice"], defaultVoice)
	}
	if body["speed"] != 1.5 {
		t.Errorf("speed: got %v, want 1.5", body["speed"])
	}
}

func TestSynthesizeUnauthorized(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	})

	_, err := gw.Synthesize(context.Background(), "hi", synth.DefaultParams())
	if !errors.Is(err, synth.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized", err)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})

	if _, err := gw.Synthesize(context.Background(), " ", synth.DefaultParams()); !errors.Is(err, synth.ErrEmptyText) {
		t.Errorf("got %v, want ErrEmptyText", err)
	}
}

func TestVoices(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	voices, err := gw.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) == 0 || voices[0].Name != defaultVoice {
		t.Errorf("voices: got %+v", voices)
	}
}
