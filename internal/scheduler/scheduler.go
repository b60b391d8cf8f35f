// Package scheduler runs chunk synthesis in the background.
//
// A Scheduler owns at most one generation pass at a time. A pass holds one
// write-once Task per chunk; the chunk playback starts from is synthesized
// immediately on its own goroutine while a bounded worker pool works
// through the rest. Tasks never retry on their own: a failed chunk stays
// Failed until the caller asks for Regenerate.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/logging"
	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

// DefaultWorkers is the background pool size when Options.Workers is unset.
const DefaultWorkers = 3

// Errors returned by Regenerate.
var (
	ErrNotScheduled    = errors.New("no generation pass scheduled")
	ErrIndexOutOfRange = errors.New("chunk index out of range")
	ErrNotFailed       = errors.New("chunk has not failed")
)

// Options configures a Scheduler.
type Options struct {
	Workers  int               // Background synthesis concurrency
	Recorder *logging.Recorder // Optional synthesis metrics
}

// Stats is a snapshot of the current pass.
type Stats struct {
	Pending  int
	Ready    int
	Failed   int
	Retained int // Audio resources alive across all passes
}

// Scheduler synthesizes chunks through a gateway.
type Scheduler struct {
	gw       synth.Gateway
	workers  int
	rec      *logging.Recorder
	mu       sync.Mutex
	pass     *pass
	retained atomic.Int64
	inflight sync.WaitGroup
}

// pass is one Schedule call's worth of work.
type pass struct {
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	chunks []segment.Chunk
	params synth.Params
	slots  []atomic.Pointer[Task]
}

// New creates a scheduler for gw.
func New(gw synth.Gateway, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	rec := opts.Recorder
	if rec == nil {
		rec = logging.NewRecorder(nil)
	}
	return &Scheduler{
		gw:      gw,
		workers: opts.Workers,
		rec:     rec,
	}
}

// Schedule cancels any previous pass and starts generating chunks. The
// chunk at start is synthesized right away; the others are queued after
// it in index order, wrapping around to the chunks before start.
func (s *Scheduler) Schedule(chunks []segment.Chunk, start int, params synth.Params) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &pass{
		ctx:    ctx,
		cancel: cancel,
		chunks: chunks,
		params: params,
		slots:  make([]atomic.Pointer[Task], len(chunks)),
	}
	for i := range chunks {
		p.slots[i].Store(newTask(i))
	}

	s.mu.Lock()
	old := s.pass
	s.pass = p
	s.mu.Unlock()

	if old != nil {
		s.close(old)
	}

	n := len(chunks)
	if n == 0 {
		return
	}
	if start < 0 {
		start = 0
	}
	if start >= n {
		start = n - 1
	}

	log.Debug("scheduling generation pass", "chunks", n, "start", start, "workers", min(s.workers, n-1))

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.synthesize(p, p.slots[start].Load())
	}()

	order := make([]int, 0, n-1)
	for i := start + 1; i < n; i++ {
		order = append(order, i)
	}
	for i := 0; i < start; i++ {
		order = append(order, i)
	}
	if len(order) == 0 {
		return
	}

	jobs := make(chan int, len(order))
	for _, i := range order {
		jobs <- i
	}
	close(jobs)

	for w := 0; w < min(s.workers, len(order)); w++ {
		s.inflight.Add(1)
		go s.worker(p, jobs)
	}
}

func (s *Scheduler) worker(p *pass, jobs <-chan int) {
	defer s.inflight.Done()

	for i := range jobs {
		select {
		case <-p.ctx.Done():
			return
		default:
		}
		s.synthesize(p, p.slots[i].Load())
	}
}

func (s *Scheduler) synthesize(p *pass, t *Task) {
	if t == nil || p.ctx.Err() != nil {
		return
	}

	chunk := p.chunks[t.index]
	m := s.rec.StartSynthesis(s.gw.Name(), t.index, chunk.Text)

	audio, err := s.gw.Synthesize(p.ctx, chunk.Text, p.params)
	if err != nil {
		if p.ctx.Err() != nil {
			// Cancelled passes leave their tasks Pending.
			m.Finish(0, nil)
			return
		}
		m.Finish(0, err)
		t.fail(err)
		log.Warn("chunk synthesis failed", "chunk", t.index, "error", err)
		return
	}

	m.Finish(audio.Size(), nil)
	s.retained.Add(1)
	t.complete(audio)

	// A pass closed while we were synthesizing must not keep the audio.
	if p.closed.Load() && t.release() {
		s.retained.Add(-1)
	}
}

// Task returns the current task for chunk i, or nil when nothing is
// scheduled or i is out of range.
func (s *Scheduler) Task(i int) *Task {
	s.mu.Lock()
	p := s.pass
	s.mu.Unlock()

	if p == nil || i < 0 || i >= len(p.slots) {
		return nil
	}
	return p.slots[i].Load()
}

// Regenerate retries a failed chunk with a fresh task.
func (s *Scheduler) Regenerate(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pass
	if p == nil {
		return ErrNotScheduled
	}
	if i < 0 || i >= len(p.slots) {
		return ErrIndexOutOfRange
	}

	old := p.slots[i].Load()
	if old == nil || old.State() != StateFailed {
		return ErrNotFailed
	}

	t := newTask(i)
	if !p.slots[i].CompareAndSwap(old, t) {
		return ErrNotFailed
	}

	log.Debug("regenerating chunk", "chunk", i)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.synthesize(p, t)
	}()
	return nil
}

// CancelAll cancels the current pass and releases its audio. It is safe
// to call at any time and more than once.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	p := s.pass
	s.pass = nil
	s.mu.Unlock()

	if p != nil {
		s.close(p)
	}
}

func (s *Scheduler) close(p *pass) {
	p.closed.Store(true)
	p.cancel()

	released := 0
	for i := range p.slots {
		if t := p.slots[i].Load(); t != nil && t.release() {
			s.retained.Add(-1)
			released++
		}
	}
	log.Debug("generation pass cancelled", "chunks", len(p.slots), "released", released)
}

// Stats counts task states in the current pass.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	p := s.pass
	s.mu.Unlock()

	st := Stats{Retained: int(s.retained.Load())}
	if p == nil {
		return st
	}
	for i := range p.slots {
		t := p.slots[i].Load()
		if t == nil {
			continue
		}
		switch t.State() {
		case StatePending:
			st.Pending++
		case StateReady:
			st.Ready++
		case StateFailed:
			st.Failed++
		}
	}
	return st
}

// Metrics returns the synthesis metrics recorded so far.
func (s *Scheduler) Metrics() logging.Summary {
	return s.rec.Summary()
}

// Wait blocks until every synthesis started so far has returned.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}
