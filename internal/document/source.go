package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
)

// Stdin is the source argument that reads the document from standard input.
const Stdin = "-"

// maxDocumentBytes bounds what Open reads from any source.
const maxDocumentBytes = 16 << 20

// Open loads a document from a file path, an http(s) URL or Stdin. Files
// and URLs with a markdown extension are parsed as markdown; markdown
// forces it for every source.
func Open(ctx context.Context, arg string, stdin io.Reader, markdown bool) (Document, error) {
	switch {
	case arg == Stdin:
		data, err := readAll(stdin)
		if err != nil {
			return Document{}, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return Parse(Stdin, data, markdown)

	case isURL(arg):
		return fetch(ctx, arg, markdown)

	default:
		path, err := filepath.Abs(arg)
		if err != nil {
			return Document{}, fmt.Errorf("unable to get absolute path: %w", err)
		}
		f, err := os.Open(path)
		if err != nil {
			return Document{}, fmt.Errorf("unable to open file: %w", err)
		}
		defer f.Close() //nolint:errcheck

		data, err := readAll(f)
		if err != nil {
			return Document{}, fmt.Errorf("unable to read file: %w", err)
		}
		return Parse(path, data, markdown || IsMarkdownFile(path))
	}
}

// FromClipboard loads the document from the system clipboard.
func FromClipboard(markdown bool) (Document, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return Document{}, fmt.Errorf("unable to read clipboard: %w", err)
	}
	return Parse("clipboard", []byte(text), markdown)
}

func fetch(ctx context.Context, rawURL string, markdown bool) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("invalid url: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("unable to get url: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	data, err := readAll(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("unable to read response: %w", err)
	}

	isMarkdown := markdown || IsMarkdownFile(resp.Request.URL.Path) ||
		strings.HasPrefix(resp.Header.Get("Content-Type"), "text/markdown")
	log.Debug("fetched document", "url", rawURL, "bytes", len(data), "markdown", isMarkdown)
	return Parse(rawURL, data, isMarkdown)
}

func isURL(arg string) bool {
	u, err := url.ParseRequestURI(arg)
	return err == nil && strings.Contains(arg, "://") && (u.Scheme == "http" || u.Scheme == "https")
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentBytes)
	}
	return data, nil
}
