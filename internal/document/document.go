// Package document loads the text to be read aloud.
//
// A Document's text is what the engine speaks and what character offsets
// refer to. Markdown is reduced to plain text first; every text is
// normalized to NFC with Unix line endings so the same content always
// produces the same ID and the same offsets.
package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"

	"github.com/muesli/reflow/truncate"
	"golang.org/x/text/unicode/norm"
)

// ErrEmpty is returned for documents without speakable text.
var ErrEmpty = errors.New("document has no text")

const maxTitleWidth = 60

var markdownExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".mdown":    true,
	".mkdn":     true,
	".mkd":      true,
}

// Document is an immutable text to read aloud.
type Document struct {
	ID     string // Content hash; stable across runs
	Title  string
	Source string // Path, URL, "-" or "clipboard"
	Text   string
}

// New builds a document from plain text.
func New(source, title, text string) (Document, error) {
	text = normalize(text)
	if strings.TrimSpace(text) == "" {
		return Document{}, ErrEmpty
	}
	if title == "" {
		title = firstLine(text)
	}
	return Document{
		ID:     contentID(text),
		Title:  title,
		Source: source,
		Text:   text,
	}, nil
}

// FromMarkdown builds a document from markdown source. The first heading
// becomes the title.
func FromMarkdown(source string, md []byte) (Document, error) {
	text, title := plainText(RemoveFrontmatter(md))
	return New(source, title, text)
}

// Parse builds a document from raw bytes, treating them as markdown when
// markdown is true.
func Parse(source string, data []byte, markdown bool) (Document, error) {
	if markdown {
		return FromMarkdown(source, data)
	}
	return New(source, "", string(data))
}

// IsMarkdownFile reports whether name has a markdown extension.
func IsMarkdownFile(name string) bool {
	return markdownExts[strings.ToLower(filepath.Ext(name))]
}

// RemoveFrontmatter strips a leading YAML front matter block.
func RemoveFrontmatter(content []byte) []byte {
	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return content
	}
	rest := content[bytes.IndexByte(content, '\n')+1:]
	for {
		nl := bytes.IndexByte(rest, '\n')
		line := rest
		if nl >= 0 {
			line = rest[:nl]
		}
		if t := bytes.TrimRight(line, "\r"); bytes.Equal(t, []byte("---")) || bytes.Equal(t, []byte("...")) {
			if nl < 0 {
				return nil
			}
			return rest[nl+1:]
		}
		if nl < 0 {
			return content
		}
		rest = rest[nl+1:]
	}
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}

func contentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

func firstLine(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return truncate.StringWithTail(line, maxTitleWidth, "…")
}
