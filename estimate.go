package main

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

// charsPerSecond approximates speech at rate 1.0 (about 150 words a minute).
const charsPerSecond = 15

// usage is what reading a document would cost, computed without calling
// the synthesis service.
type usage struct {
	Gateway  string
	Chars    int
	Bytes    int
	Chunks   int
	Duration time.Duration

	// Google only.
	VoiceTier string
	FreeChars int
}

func estimateUsage(text, gateway, voiceName string, p synth.Params, maxBytes int) usage {
	p = p.Normalize()
	chars := utf8.RuneCountInString(text)

	u := usage{
		Gateway:  gateway,
		Chars:    chars,
		Bytes:    len(text),
		Chunks:   len(segment.Segment(text, maxBytes)),
		Duration: time.Duration(float64(chars) / charsPerSecond / p.Rate * float64(time.Second)).Round(time.Second),
	}
	if gateway == "google" {
		u.VoiceTier, u.FreeChars = googleTier(voiceName)
	}
	return u
}

// googleTier classifies a Google voice and returns its monthly free
// character allowance.
func googleTier(name string) (string, int) {
	switch {
	case strings.Contains(name, "Neural2"):
		return "Neural2", 1_000_000
	case strings.Contains(name, "Wavenet"):
		return "WaveNet", 1_000_000
	default:
		return "Standard", 4_000_000
	}
}

func printUsage(w io.Writer, u usage) {
	fmt.Fprintf(w, "%s %s chars, %s\n", keyword("Text:     "), humanize.Comma(int64(u.Chars)), humanize.Bytes(uint64(u.Bytes))) //nolint:gosec
	fmt.Fprintf(w, "%s %d requests to %s\n", keyword("Chunks:   "), u.Chunks, u.Gateway)
	fmt.Fprintf(w, "%s about %s\n", keyword("Listening:"), u.Duration)
	if u.VoiceTier == "" {
		return
	}
	fmt.Fprintf(w, "%s %s, %s chars free per month\n", keyword("Tier:     "), u.VoiceTier, humanize.Comma(int64(u.FreeChars)))
	if u.Chars > u.FreeChars {
		fmt.Fprintln(w, faint("This document alone exceeds the monthly free tier."))
	}
}
