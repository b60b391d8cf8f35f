package cache

import (
	"errors"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds a level's capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrInvalidKey is returned for keys that cannot name a cache file
	ErrInvalidKey = errors.New("invalid cache key")
)

// Stats holds the counters of one cache level.
type Stats struct {
	Capacity  int64 // Maximum size in bytes
	Size      int64 // Current size in bytes
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Config configures a Manager.
type Config struct {
	MemoryCapacity   int64         // Bytes held in memory
	DiskCapacity     int64         // Bytes held on disk, after compression
	Dir              string        // Directory for cache files
	CompressionLevel int           // zstd level; 0 stores raw PCM
	TTL              time.Duration // Age after which disk entries expire; 0 keeps them
	CleanupInterval  time.Duration // How often expired entries are removed; 0 disables
}

// DefaultConfig returns the default configuration for a cache in dir.
func DefaultConfig(dir string) Config {
	return Config{
		MemoryCapacity:   64 << 20,
		DiskCapacity:     512 << 20,
		Dir:              dir,
		CompressionLevel: 3,
		TTL:              30 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}
