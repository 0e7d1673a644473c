package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheMiss is returned when an item is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// Level represents the cache tier
type Level int

const (
	// LevelMemory is the in-memory cache (fastest)
	LevelMemory Level = iota

	// LevelDisk is the compressed disk cache (persistent)
	LevelDisk
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "L1-Memory"
	case LevelDisk:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// Stats holds cache performance metrics
type Stats struct {
	Capacity int64 // Maximum capacity in bytes

	Size      int64 // Current size in bytes
	ItemCount int64 // Number of items in cache

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	LastAccess time.Time
	LastEvict  time.Time
}

func (s *Stats) computeHitRate() {
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}

// Config holds configuration for a Manager
type Config struct {
	// Memory cache (L1)
	MemoryCapacity int64 // Bytes

	// Disk cache (L2), disabled when DiskPath is empty
	DiskCapacity     int64  // Bytes
	DiskPath         string // Directory for cache files
	CompressionLevel int    // Zstd compression level (1-22), 0 disables compression

	// Cleanup settings
	TTL             time.Duration // Age after which entries expire, 0 keeps them
	CleanupInterval time.Duration // How often to run cleanup, 0 disables it
}

// DefaultConfig returns the default cache configuration. The disk cache is
// disabled until a DiskPath is set.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   256 * 1024 * 1024, // 256MB
		DiskCapacity:     1024 * 1024 * 1024, // 1GB
		CompressionLevel: 3,
		TTL:              30 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Key identifies one decoded version of a source file.
type Key struct {
	Path       string
	Size       int64
	ModTime    time.Time
	SampleRate int
}

// KeyFor builds the key of the file at path decoded at sampleRate. A change
// to the file's size or modification time yields a different key.
func KeyFor(path string, sampleRate int) (Key, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return Key{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return Key{
		Path:       path,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		SampleRate: sampleRate,
	}, nil
}

// String returns the storage key.
func (k Key) String() string {
	data := fmt.Sprintf("%s|%d|%d|%d", k.Path, k.Size, k.ModTime.UnixNano(), k.SampleRate)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
