package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager layers the memory cache over the disk cache. Disk hits are
// promoted to memory. It implements synth.Store.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	config Config

	stop chan struct{}
	wg   sync.WaitGroup

	mu          sync.Mutex
	cleanupRuns int64
	lastCleanup time.Time
}

// ManagerStats aggregates the counters of both levels.
type ManagerStats struct {
	Memory      Stats
	Disk        Stats
	CleanupRuns int64
	LastCleanup time.Time
}

// HitRate returns the share of lookups answered by either level.
func (s ManagerStats) HitRate() float64 {
	hits := s.Memory.Hits + s.Disk.Hits
	// Every disk lookup follows a memory miss.
	lookups := s.Memory.Hits + s.Memory.Misses
	if lookups == 0 {
		return 0
	}
	return float64(hits) / float64(lookups)
}

// NewManager opens the cache described by config.
func NewManager(config Config) (*Manager, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("cache directory is not set")
	}

	disk, err := NewDiskCache(config.Dir, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	m := &Manager{
		memory: NewMemoryCache(config.MemoryCapacity),
		disk:   disk,
		config: config,
		stop:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 && config.TTL > 0 {
		m.cleanup()
		m.wg.Add(1)
		go m.cleanupLoop()
	}
	return m, nil
}

// Get looks key up in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, true
	}
	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := m.memory.Put(key, data); err != nil {
		log.Debug("not promoting cache entry", "key", key, "error", err)
	}
	return data, true
}

// Put stores value in both levels. An item too large for memory is still
// written to disk.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := m.disk.Put(key, value); err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Delete removes key from both levels.
func (m *Manager) Delete(key string) {
	m.memory.Delete(key)
	m.disk.Delete(key)
}

// Clear empties both levels.
func (m *Manager) Clear() error {
	m.memory.Clear()
	if err := m.disk.Clear(); err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Stats returns the counters of both levels.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	runs, last := m.cleanupRuns, m.lastCleanup
	m.mu.Unlock()

	return ManagerStats{
		Memory:      m.memory.Stats(),
		Disk:        m.disk.Stats(),
		CleanupRuns: runs,
		LastCleanup: last,
	}
}

// Close stops the cleanup loop and closes the disk cache.
func (m *Manager) Close() error {
	close(m.stop)
	m.wg.Wait()

	if err := m.disk.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

// cleanup removes entries older than the TTL from both levels.
func (m *Manager) cleanup() {
	removed := m.disk.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	pruned := m.memory.Prune(m.config.TTL)

	m.mu.Lock()
	m.cleanupRuns++
	m.lastCleanup = time.Now()
	m.mu.Unlock()

	if removed > 0 || pruned > 0 {
		log.Debug("cache cleanup", "disk", removed, "memory", pruned)
	}
}
