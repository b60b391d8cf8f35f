// Package session remembers where reading stopped in each document so the
// next run can resume there. Positions are kept in a small YAML file keyed
// by document ID.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// DefaultMaxEntries bounds how many documents the store remembers.
const DefaultMaxEntries = 200

// Position is a saved reading position.
type Position struct {
	Char    int       `yaml:"char"`
	Title   string    `yaml:"title,omitempty"`
	Source  string    `yaml:"source,omitempty"`
	Updated time.Time `yaml:"updated"`
}

type file struct {
	Documents map[string]Position `yaml:"documents"`
}

// Store is a file-backed map of document ID to Position. It is safe for
// concurrent use; each write rewrites the whole file.
type Store struct {
	path       string
	maxEntries int

	mu        sync.Mutex
	positions map[string]Position
}

// Open loads the store at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:       path,
		maxEntries: DefaultMaxEntries,
		positions:  make(map[string]Position),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read session file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unable to parse session file %s: %w", path, err)
	}
	if f.Documents != nil {
		s.positions = f.Documents
	}
	log.Debug("session store loaded", "path", path, "documents", len(s.positions))
	return s, nil
}

// Get returns the saved position for a document.
func (s *Store) Get(id string) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	return p, ok
}

// Save records a position and writes the file.
func (s *Store) Save(id string, p Position) error {
	if p.Updated.IsZero() {
		p.Updated = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[id] = p
	s.prune()
	return s.write()
}

// Forget removes a document's position.
func (s *Store) Forget(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[id]; !ok {
		return nil
	}
	delete(s.positions, id)
	return s.write()
}

// Len returns the number of remembered documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// prune drops the least recently updated entries beyond maxEntries.
func (s *Store) prune() {
	excess := len(s.positions) - s.maxEntries
	if excess <= 0 {
		return
	}

	ids := make([]string, 0, len(s.positions))
	for id := range s.positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.positions[ids[i]].Updated.Before(s.positions[ids[j]].Updated)
	})
	for _, id := range ids[:excess] {
		delete(s.positions, id)
	}
}

func (s *Store) write() error {
	data, err := yaml.Marshal(file{Documents: s.positions})
	if err != nil {
		return fmt.Errorf("unable to encode session file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("unable to create session directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("unable to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("unable to write session file: %w", err)
	}
	return nil
}
