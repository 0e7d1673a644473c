package cache

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager coordinates the memory and disk tiers. Reads check L1 then L2 and
// promote L2 hits into L1. Writes land in L1 synchronously and in L2 in the
// background.
type Manager struct {
	l1  *MemoryCache
	l2  *DiskCache // nil when the disk tier is disabled
	cfg Config
	log *log.Logger

	writes      sync.WaitGroup
	cleanupStop chan struct{}
	cleanupWg   sync.WaitGroup
	closeOnce   sync.Once

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates hits across both tiers.
type ManagerStats struct {
	Memory Stats
	Disk   Stats

	Hits          int64
	Misses        int64
	L1Hits        int64
	L2Hits        int64
	Promotions    int64
	Invalidations int64
	CleanupRuns   int64
	LastCleanup   time.Time
}

// NewManager creates a manager from cfg. A nil logger discards output.
func NewManager(cfg Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	m := &Manager{
		l1:          NewMemoryCache(cfg.MemoryCapacity),
		cfg:         cfg,
		log:         logger,
		cleanupStop: make(chan struct{}),
	}

	if cfg.DiskPath != "" {
		l2, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.l2 = l2
	}

	if cfg.CleanupInterval > 0 {
		m.cleanupWg.Add(1)
		go m.cleanupLoop()
	}
	return m, nil
}

// Get looks key up in both tiers and reports which one served it.
func (m *Manager) Get(key Key) ([]byte, Level, bool) {
	k := key.String()

	if pcm, ok := m.l1.Get(k); ok {
		m.mu.Lock()
		m.stats.Hits++
		m.stats.L1Hits++
		m.mu.Unlock()
		return pcm, LevelMemory, true
	}

	if m.l2 != nil {
		if pcm, ok := m.l2.Get(k); ok {
			promoted := m.l1.Put(k, key.Path, pcm) == nil
			m.mu.Lock()
			m.stats.Hits++
			m.stats.L2Hits++
			if promoted {
				m.stats.Promotions++
			}
			m.mu.Unlock()
			return pcm, LevelDisk, true
		}
	}

	m.mu.Lock()
	m.stats.Misses++
	m.mu.Unlock()
	return nil, LevelMemory, false
}

// Put stores pcm under key. Only an L1 failure other than ErrItemTooLarge is
// returned; disk errors are logged.
func (m *Manager) Put(key Key, pcm []byte) error {
	k := key.String()

	if err := m.l1.Put(k, key.Path, pcm); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("L1 cache error: %w", err)
	}

	if m.l2 != nil {
		m.writes.Add(1)
		go func() {
			defer m.writes.Done()
			if err := m.l2.Put(k, key.Path, pcm); err != nil && !errors.Is(err, ErrItemTooLarge) {
				m.log.Warn("Disk cache write failed", "path", key.Path, "err", err)
			}
		}()
	}
	return nil
}

// Invalidate drops every decoded version of the file at path from both tiers.
func (m *Manager) Invalidate(path string) int {
	m.writes.Wait()

	n := m.l1.DeleteSource(path)
	if m.l2 != nil {
		n += m.l2.DeleteSource(path)
	}
	if n > 0 {
		m.mu.Lock()
		m.stats.Invalidations += int64(n)
		m.mu.Unlock()
		m.log.Debug("Invalidated cached audio", "path", path, "entries", n)
	}
	return n
}

// Flush waits for background disk writes to finish.
func (m *Manager) Flush() {
	m.writes.Wait()
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	m.writes.Wait()
	m.l1.Clear()
	if m.l2 != nil {
		return m.l2.Clear()
	}
	return nil
}

// Stats returns a snapshot of both tiers and the aggregate counters.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	stats.Memory = m.l1.Stats()
	if m.l2 != nil {
		stats.Disk = m.l2.Stats()
	}
	return stats
}

// Close stops the cleanup loop, waits for pending writes and persists the
// disk index.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.cleanupStop)
		m.cleanupWg.Wait()
		m.writes.Wait()
		if m.l2 != nil {
			err = m.l2.Close()
		}
	})
	return err
}

func (m *Manager) cleanupLoop() {
	defer m.cleanupWg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.cleanupStop:
			return
		}
	}
}

func (m *Manager) cleanup() {
	if m.cfg.TTL > 0 {
		pruned := m.l1.Prune(m.cfg.TTL)
		if m.l2 != nil {
			pruned += m.l2.RemoveOlderThan(time.Now().Add(-m.cfg.TTL))
		}
		if pruned > 0 {
			m.log.Debug("Pruned expired audio", "entries", pruned)
		}
	}

	m.mu.Lock()
	m.stats.CleanupRuns++
	m.stats.LastCleanup = time.Now()
	m.mu.Unlock()
}
