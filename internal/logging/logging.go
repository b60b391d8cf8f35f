// Package logging configures the process logger and records per-chunk
// synthesis metrics.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Setup sets the default logger's level and output. In debug mode the log
// also goes to path, with RFC3339 timestamps, and the returned closer
// releases that file. Without debug the closer is a no-op.
func Setup(debug bool, path string) (io.Closer, error) {
	if !debug {
		log.SetLevel(log.InfoLevel)
		return nopCloser{}, nil
	}

	log.SetLevel(log.DebugLevel)
	if path == "" {
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	log.SetDefault(log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           log.DebugLevel,
	}))
	log.Debug("debug log opened", "path", path)
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Metrics describes one synthesis call.
type Metrics struct {
	Gateway    string
	ChunkIndex int
	TextLength int
	Start      time.Time
	Duration   time.Duration
	AudioBytes int
	Err        error

	rec *Recorder
}

// Recorder accumulates synthesis metrics. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	count   int
	failed  int
	bytes   int64
	elapsed time.Duration
	logger  *log.Logger
}

// NewRecorder returns a recorder that logs through logger, or the default
// logger when nil.
func NewRecorder(logger *log.Logger) *Recorder {
	return &Recorder{logger: logger}
}

func (r *Recorder) log() *log.Logger {
	if r.logger != nil {
		return r.logger
	}
	return log.Default()
}

// StartSynthesis begins timing a synthesis of chunk index.
func (r *Recorder) StartSynthesis(gateway string, index int, text string) *Metrics {
	m := &Metrics{
		Gateway:    gateway,
		ChunkIndex: index,
		TextLength: len(text),
		Start:      time.Now(),
		rec:        r,
	}
	r.log().Debug("synthesis started", "gateway", gateway, "chunk", index, "textLength", len(text))
	return m
}

// Finish records the outcome of the synthesis.
func (m *Metrics) Finish(audioBytes int, err error) {
	m.Duration = time.Since(m.Start)
	m.AudioBytes = audioBytes
	m.Err = err

	r := m.rec
	if r == nil {
		return
	}

	r.mu.Lock()
	r.count++
	r.elapsed += m.Duration
	if err != nil {
		r.failed++
	} else {
		r.bytes += int64(audioBytes)
	}
	r.mu.Unlock()

	if err != nil {
		r.log().Debug("synthesis failed", "gateway", m.Gateway, "chunk", m.ChunkIndex, "took", m.Duration, "error", err)
		return
	}
	r.log().Debug("synthesis completed",
		"gateway", m.Gateway,
		"chunk", m.ChunkIndex,
		"textLength", m.TextLength,
		"audio", humanize.Bytes(uint64(audioBytes)),
		"took", m.Duration)
}

// Summary is a snapshot of recorded metrics.
type Summary struct {
	Count       int
	Failed      int
	AudioBytes  int64
	AvgDuration time.Duration
}

// String formats the summary for a debug log line.
func (s Summary) String() string {
	return fmt.Sprintf("%d syntheses, %d failed, %s audio, avg %v",
		s.Count, s.Failed, humanize.Bytes(uint64(s.AudioBytes)), s.AvgDuration.Round(time.Millisecond))
}

// Summary returns the metrics recorded so far.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{Count: r.count, Failed: r.failed, AudioBytes: r.bytes}
	if r.count > 0 {
		s.AvgDuration = r.elapsed / time.Duration(r.count)
	}
	return s
}
