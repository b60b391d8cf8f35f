package session

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "positions.yml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len: got %d, want 0", s.Len())
	}
	if _, ok := s.Get("anything"); ok {
		t.Error("empty store returned a position")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "positions.yml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save("doc-1", Position{Char: 1234, Title: "Chapter One", Source: "/tmp/one.md"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	p, ok := reopened.Get("doc-1")
	if !ok {
		t.Fatal("position not persisted")
	}
	if p.Char != 1234 || p.Title != "Chapter One" || p.Source != "/tmp/one.md" {
		t.Errorf("Position: got %+v", p)
	}
	if p.Updated.IsZero() {
		t.Error("Updated not set")
	}
}

func TestForget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.yml")
	s, _ := Open(path)
	s.Save("doc", Position{Char: 10})

	if err := s.Forget("doc"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if err := s.Forget("doc"); err != nil {
		t.Fatalf("second Forget: %v", err)
	}

	reopened, _ := Open(path)
	if _, ok := reopened.Get("doc"); ok {
		t.Error("forgotten position still on disk")
	}
}

func TestPruneKeepsMostRecent(t *testing.T) {
	s, _ := Open(filepath.Join(t.TempDir(), "positions.yml"))
	s.maxEntries = 3

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Save(fmt.Sprintf("doc-%d", i), Position{Char: i, Updated: base.Add(time.Duration(i) * time.Hour)})
	}

	if s.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", s.Len())
	}
	for i := 0; i < 2; i++ {
		if _, ok := s.Get(fmt.Sprintf("doc-%d", i)); ok {
			t.Errorf("doc-%d should have been pruned", i)
		}
	}
	if _, ok := s.Get("doc-4"); !ok {
		t.Error("newest entry was pruned")
	}
}

func TestOpenInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.yml")
	os.WriteFile(path, []byte("documents: [not, a, map"), 0o600)

	if _, err := Open(path); err == nil {
		t.Error("expected parse error")
	}
}
