package progress

import (
	"math"
	"testing"

	"github.com/dgnsrekt/readaloud/internal/segment"
)

type fixedPosition struct {
	chunk    int
	fraction float64
	ok       bool
}

func (f *fixedPosition) Position() (int, float64, bool) {
	return f.chunk, f.fraction, f.ok
}

// Two chunks: [0,13) and [13,28).
func testTable() segment.OffsetTable {
	return segment.NewOffsetTable(segment.Segment("Hello world. This is a test.", 16))
}

func TestCurrentCharIndex(t *testing.T) {
	tests := []struct {
		name string
		pos  fixedPosition
		want int
	}{
		{"no session", fixedPosition{ok: false, chunk: 1, fraction: 0.5}, 0},
		{"start of first chunk", fixedPosition{0, 0, true}, 0},
		{"middle of second chunk", fixedPosition{1, 0.4, true}, 19},
		{"end of second chunk", fixedPosition{1, 1, true}, 28},
		{"fraction above one", fixedPosition{0, 1.7, true}, 13},
		{"negative fraction", fixedPosition{1, -0.3, true}, 13},
		{"chunk out of range", fixedPosition{9, 0.5, true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := tt.pos
			tr := New(testTable(), &pos)
			if got := tr.CurrentCharIndex(); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOverallProgressPercent(t *testing.T) {
	pos := &fixedPosition{chunk: 0, fraction: 0, ok: true}
	tr := New(testTable(), pos)

	if got := tr.OverallProgressPercent(); got != 0 {
		t.Errorf("at start: got %v, want 0", got)
	}

	pos.chunk, pos.fraction = 0, 1
	want := 13.0 / 28.0 * 100
	if got := tr.OverallProgressPercent(); math.Abs(got-want) > 1e-9 {
		t.Errorf("after first chunk: got %v, want %v", got, want)
	}

	pos.chunk, pos.fraction = 1, 1
	if got := tr.OverallProgressPercent(); got != 100 {
		t.Errorf("at end: got %v, want 100", got)
	}

	pos.ok = false
	if got := tr.OverallProgressPercent(); got != 0 {
		t.Errorf("without session: got %v, want 0", got)
	}
}

func TestProgressIsMonotonicWhilePlaying(t *testing.T) {
	pos := &fixedPosition{ok: true}
	tr := New(testTable(), pos)

	last := -1.0
	for chunk := 0; chunk < 2; chunk++ {
		for step := 0; step <= 10; step++ {
			pos.chunk, pos.fraction = chunk, float64(step)/10
			got := tr.OverallProgressPercent()
			if got < last {
				t.Fatalf("progress went backwards at chunk %d step %d: %v < %v", chunk, step, got, last)
			}
			last = got
		}
	}
}

func TestEmptyDocument(t *testing.T) {
	tr := New(segment.NewOffsetTable(nil), &fixedPosition{ok: true, fraction: 0.5})

	if got := tr.CurrentCharIndex(); got != 0 {
		t.Errorf("CurrentCharIndex: got %d, want 0", got)
	}
	if got := tr.OverallProgressPercent(); got != 0 {
		t.Errorf("OverallProgressPercent: got %v, want 0", got)
	}
}
