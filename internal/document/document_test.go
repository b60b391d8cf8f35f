package document

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	// "é" as e + combining acute, with Windows line endings.
	doc, err := New("test", "", "Cafe\u0301 opens.\r\nSecond line.")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if want := "Caf\u00e9 opens.\nSecond line."; doc.Text != want {
		t.Errorf("Text: got %q, want %q", doc.Text, want)
	}
	if doc.Title != "Caf\u00e9 opens." {
		t.Errorf("Title: got %q", doc.Title)
	}
	if len(doc.ID) != 32 {
		t.Errorf("ID: got %q, want 32 hex chars", doc.ID)
	}

	same, _ := New("elsewhere", "", "Caf\u00e9 opens.\nSecond line.")
	if same.ID != doc.ID {
		t.Error("equivalent texts produced different IDs")
	}
	other, _ := New("test", "", "Something else.")
	if other.ID == doc.ID {
		t.Error("different texts produced the same ID")
	}
}

func TestNewEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		if _, err := New("test", "", text); !errors.Is(err, ErrEmpty) {
			t.Errorf("New(%q): got %v, want ErrEmpty", text, err)
		}
	}
}

func TestLongTitleIsTruncated(t *testing.T) {
	doc, err := New("test", "", strings.Repeat("word ", 40))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !strings.HasSuffix(doc.Title, "…") || len([]rune(doc.Title)) > maxTitleWidth {
		t.Errorf("Title not truncated: %q", doc.Title)
	}
}

func TestFromMarkdown(t *testing.T) {
	md := `---
title: ignored
---
# Getting *Started*

This is [a link](https://example.com) and ` + "`code`" + `.
Still the same paragraph.

` + "```go\nfmt.Println(\"skipped\")\n```" + `

- first item
- second item

<div>html is dropped</div>

![diagram](img.png)

Visit <https://charm.sh> now.
`
	doc, err := FromMarkdown("README.md", []byte(md))
	if err != nil {
		t.Fatalf("FromMarkdown: %v", err)
	}

	want := "Getting Started\n\n" +
		"This is a link and code. Still the same paragraph.\n\n" +
		"first item\n\n" +
		"second item\n\n" +
		"Visit https://charm.sh now."
	if doc.Text != want {
		t.Errorf("Text:\ngot  %q\nwant %q", doc.Text, want)
	}
	if doc.Title != "Getting Started" {
		t.Errorf("Title: got %q", doc.Title)
	}
	for _, banned := range []string{"ignored", "Println", "html", "diagram", "example.com"} {
		if strings.Contains(doc.Text, banned) {
			t.Errorf("Text contains %q", banned)
		}
	}
}

func TestRemoveFrontmatter(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"none", "# Title\n", "# Title\n"},
		{"yaml", "---\na: 1\n---\nbody\n", "body\n"},
		{"dots terminator", "---\na: 1\n...\nbody", "body"},
		{"unterminated", "---\na: 1\nbody", "---\na: 1\nbody"},
		{"only frontmatter", "---\na: 1\n---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(RemoveFrontmatter([]byte(tt.in))); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsMarkdownFile(t *testing.T) {
	tests := map[string]bool{
		"README.md":      true,
		"notes.MARKDOWN": true,
		"story.txt":      false,
		"noext":          false,
	}
	for name, want := range tests {
		if got := IsMarkdownFile(name); got != want {
			t.Errorf("IsMarkdownFile(%q): got %v, want %v", name, got, want)
		}
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "doc.md")
	txt := filepath.Join(dir, "doc.txt")
	os.WriteFile(md, []byte("# Heading\n\nBody *text*."), 0o644)
	os.WriteFile(txt, []byte("# Heading\n\nBody *text*."), 0o644)

	doc, err := Open(context.Background(), md, nil, false)
	if err != nil {
		t.Fatalf("Open markdown: %v", err)
	}
	if doc.Text != "Heading\n\nBody text." || doc.Source != md {
		t.Errorf("markdown doc: got %+v", doc)
	}

	doc, err = Open(context.Background(), txt, nil, false)
	if err != nil {
		t.Fatalf("Open text: %v", err)
	}
	if doc.Text != "# Heading\n\nBody *text*." {
		t.Errorf("plain doc: got %q", doc.Text)
	}

	if _, err := Open(context.Background(), filepath.Join(dir, "missing.txt"), nil, false); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpenStdin(t *testing.T) {
	doc, err := Open(context.Background(), Stdin, strings.NewReader("piped **text**"), true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.Text != "piped text" || doc.Source != Stdin {
		t.Errorf("got %+v", doc)
	}
}

func TestOpenURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notes.md":
			w.Write([]byte("# Remote\n\nFetched _over_ HTTP."))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	doc, err := Open(context.Background(), srv.URL+"/notes.md", nil, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.Text != "Remote\n\nFetched over HTTP." || doc.Title != "Remote" {
		t.Errorf("got %+v", doc)
	}

	if _, err := Open(context.Background(), srv.URL+"/missing", nil, false); err == nil {
		t.Error("expected error for 404")
	}
}
