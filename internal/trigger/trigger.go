// Package trigger debounces repeated triggers of the same key so that a held
// or bouncing input fires at most once per minimum interval.
package trigger

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum time between two firings of one key.
const DefaultInterval = 500 * time.Millisecond

// Debouncer keeps one limiter per key.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a debouncer. A non-positive interval uses DefaultInterval.
func New(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Debouncer{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Interval returns the minimum retrigger interval.
func (d *Debouncer) Interval() time.Duration {
	return d.interval
}

// Allow reports whether key may fire now.
func (d *Debouncer) Allow(key string) bool {
	return d.AllowAt(key, time.Now())
}

// AllowAt reports whether key may fire at t, consuming the slot if so.
func (d *Debouncer) AllowAt(key string, t time.Time) bool {
	return d.limiter(key).AllowN(t, 1)
}

// Reset forgets the history of key.
func (d *Debouncer) Reset(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.limiters, key)
}

func (d *Debouncer) limiter(key string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(d.interval), 1)
		d.limiters[key] = l
	}
	return l
}
