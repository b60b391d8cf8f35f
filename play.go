package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/document"
	"github.com/dgnsrekt/readaloud/internal/engine"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/scheduler"
	"github.com/dgnsrekt/readaloud/internal/session"
)

const (
	statusInterval = 250 * time.Millisecond
	defaultWidth   = 80
	titleWidth     = 32
)

const keysHelp = `space  pause or resume
l      next chunk
h      previous chunk
r      retry a chunk that failed to synthesize
q      quit and remember the position`

// reader plays one document and drives the status line.
type reader struct {
	doc   document.Document
	eng   *engine.Engine
	store *session.Store
	out   io.Writer
	tty   bool

	// last known position, kept for when the session ends on an error
	lastChar int
	message  string
}

func newReader(doc document.Document, eng *engine.Engine, store *session.Store, out io.Writer) *reader {
	return &reader{
		doc:   doc,
		eng:   eng,
		store: store,
		out:   out,
		tty:   isTerminal(out),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// read plays the document from start, taking keys from in when it is a
// terminal.
func (r *reader) read(ctx context.Context, in *os.File, start int) error {
	keys, restore, err := readKeys(ctx, in)
	if err != nil {
		return err
	}
	defer restore()

	if keys != nil && r.tty {
		fmt.Fprintf(r.out, "%s\r\n", faint(strings.ReplaceAll(keysHelp, "\n", "  ·  ")))
	}
	return r.loop(ctx, keys, start)
}

// readKeys puts the terminal in raw mode and streams single key presses.
// It returns a nil channel when in is not a terminal.
func readKeys(ctx context.Context, in *os.File) (<-chan byte, func(), error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, func() {}, nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to set terminal mode: %w", err)
	}

	keys := make(chan byte)
	go func() {
		defer close(keys)
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}()

	return keys, func() { _ = term.Restore(fd, state) }, nil
}

func (r *reader) loop(ctx context.Context, keys <-chan byte, start int) error {
	defer r.eng.Close()

	log.Debug("Reading", "title", r.doc.Title, "source", r.doc.Source, "chunks", len(r.eng.Chunks()), "start", start)
	if len(r.eng.Chunks()) == 0 {
		return document.ErrEmpty
	}
	if err := r.eng.Play(start); err != nil {
		return err
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.quit()

		case k, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			if done := r.handleKey(k); done {
				return r.quit()
			}

		case ev := <-r.eng.Events():
			if done, err := r.handleEvent(ev); done {
				return err
			}

		case <-ticker.C:
		}

		if r.eng.Status().SessionID != "" {
			r.lastChar = r.eng.CurrentCharIndex()
		}
		r.render()
	}
}

// handleKey acts on a key press and reports whether reading should stop.
func (r *reader) handleKey(k byte) bool {
	var err error
	switch k {
	case 'q', 'Q', 3, 4: // ctrl+c, ctrl+d
		return true
	case ' ', 'p':
		err = r.eng.TogglePause()
	case 'l', 'n':
		err = r.eng.SeekChunk(1)
	case 'h', 'b':
		err = r.eng.SeekChunk(-1)
	case 'r':
		err = r.eng.RegenerateCurrent()
		if err == nil {
			r.message = "retrying"
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrNotFailed):
		r.message = "chunk has not failed"
	case errors.Is(err, playback.ErrInvalidState):
	default:
		r.message = err.Error()
	}
	return false
}

// handleEvent reacts to playback events and reports whether reading is
// over, with the error that ended it.
func (r *reader) handleEvent(ev playback.Event) (bool, error) {
	switch ev.Type {
	case playback.EventChunkStarted:
		r.message = ""
	case playback.EventChunkFailed:
		r.message = fmt.Sprintf("chunk %d failed: %v (r to retry)", ev.Chunk+1, ev.Err)
	case playback.EventCompleted:
		r.finishLine()
		log.Debug("Finished", "title", r.doc.Title, "synthesis", r.eng.Metrics())
		if err := r.store.Forget(r.doc.ID); err != nil {
			log.Warn("Could not clear saved position", "error", err)
		}
		return true, nil
	case playback.EventPlaybackError:
		r.finishLine()
		r.save(r.lastChar)
		return true, ev.Err
	}
	return false, nil
}

// quit stops playback and remembers where it stopped.
func (r *reader) quit() error {
	char := r.lastChar
	if r.eng.Status().SessionID != "" {
		char = r.eng.CurrentCharIndex()
	}
	r.eng.Stop()
	r.finishLine()
	r.save(char)
	return nil
}

func (r *reader) save(char int) {
	err := r.store.Save(r.doc.ID, session.Position{
		Char:   char,
		Title:  r.doc.Title,
		Source: r.doc.Source,
	})
	if err != nil {
		log.Warn("Could not save position", "error", err)
		return
	}
	log.Debug("Saved position", "title", r.doc.Title, "char", char)
}

func (r *reader) render() {
	if !r.tty {
		return
	}
	fmt.Fprintf(r.out, "\r\x1b[K%s", r.statusLine(terminalWidth(r.out)))
}

func (r *reader) finishLine() {
	if r.tty {
		fmt.Fprint(r.out, "\r\x1b[K")
	}
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// statusLine describes the session in one line of at most width cells.
func (r *reader) statusLine(width int) string {
	st := r.eng.Status()
	state := st.State.String()
	if st.Waiting && st.SessionID != "" {
		state = "buffering"
	}

	parts := []string{
		truncate.StringWithTail(r.doc.Title, titleWidth, "…"),
		state,
		fmt.Sprintf("%d/%d", st.ChunkIndex+1, len(r.eng.Chunks())),
		fmt.Sprintf("%.0f%%", r.eng.Progress()),
		fmt.Sprintf("%s of %s chars", humanize.Comma(int64(r.eng.CurrentCharIndex())), humanize.Comma(int64(r.eng.Len()))),
	}
	if r.message != "" {
		parts = append(parts, r.message)
	}

	return truncate.StringWithTail(strings.Join(parts, " · "), uint(max(width-1, 1)), "…") //nolint:gosec
}
