// Package progress reports how far playback has got through a document.
//
// Positions are interpolated linearly across a chunk's character range
// from the fraction of its audio that has played. Speech rate is not
// uniform per character, so the result is an approximation: good enough
// for a progress bar or a resume point, not for word highlighting.
package progress

import (
	"github.com/dgnsrekt/readaloud/internal/segment"
)

// PositionSource reports the chunk being played and the fraction of its
// audio played so far. ok is false when nothing is playing.
// *playback.Controller implements it.
type PositionSource interface {
	Position() (chunk int, fraction float64, ok bool)
}

// Tracker maps the playback position onto the document.
type Tracker struct {
	table segment.OffsetTable
	src   PositionSource
}

// New creates a tracker for a document's offset table.
func New(table segment.OffsetTable, src PositionSource) *Tracker {
	return &Tracker{table: table, src: src}
}

// CurrentCharIndex returns the approximate character index being spoken.
// It is 0 without an active session.
func (t *Tracker) CurrentCharIndex() int {
	chunk, fraction, ok := t.src.Position()
	if !ok {
		return 0
	}
	start, end := t.table.Range(chunk)
	return start + int(clamp(fraction, 0, 1)*float64(end-start))
}

// OverallProgressPercent returns the approximate share of the document
// already spoken, from 0 to 100.
func (t *Tracker) OverallProgressPercent() float64 {
	total := t.table.Total()
	if total <= 0 {
		return 0
	}
	return clamp(float64(t.CurrentCharIndex())/float64(total)*100, 0, 100)
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
