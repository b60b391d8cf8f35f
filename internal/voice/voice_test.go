package voice

import (
	"errors"
	"testing"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

var testVoices = []synth.Voice{
	{Name: "en-US-Standard-A", LanguageCode: "en-US", Gender: "MALE"},
	{Name: "en-US-Wavenet-F", LanguageCode: "en-US", Gender: "FEMALE"},
	{Name: "en-GB-Neural2-B", LanguageCode: "en-GB", Gender: "MALE"},
	{Name: "de-DE-Wavenet-C", LanguageCode: "de-DE", Gender: "FEMALE"},
	{Name: "nova"},
}

func TestSelect(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"en-US-Wavenet-F", "en-US-Wavenet-F"},
		{"EN-GB-NEURAL2-B", "en-GB-Neural2-B"},
		{"nova", "nova"},
		{"deWavenet", "de-DE-Wavenet-C"},
		{"GB", "en-GB-Neural2-B"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := Select(tt.query, testVoices)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("got %s, want %s", got.Name, tt.want)
			}
		})
	}
}

func TestSelectNoMatch(t *testing.T) {
	for _, query := range []string{"", "zzzz"} {
		if _, err := Select(query, testVoices); !errors.Is(err, ErrNoMatch) {
			t.Errorf("Select(%q): got %v, want ErrNoMatch", query, err)
		}
	}
	if _, err := Select("nova", nil); !errors.Is(err, ErrNoMatch) {
		t.Errorf("empty catalog: got %v, want ErrNoMatch", err)
	}
}

func TestFilter(t *testing.T) {
	if got := Filter("", testVoices); len(got) != len(testVoices) {
		t.Errorf("empty query: got %d voices, want %d", len(got), len(testVoices))
	}

	got := Filter("wavenet", testVoices)
	if len(got) != 2 {
		t.Fatalf("wavenet: got %d voices, want 2", len(got))
	}
	for _, v := range got {
		if v.Name != "en-US-Wavenet-F" && v.Name != "de-DE-Wavenet-C" {
			t.Errorf("unexpected match %s", v.Name)
		}
	}
}
