package rate

import (
	"sync"
	"time"
)

// memoryFallback is the degraded-mode limiter used while the shared cache is
// unreachable. It applies the same fixed-window thresholds but its counters
// are process-local, so limits hold per instance instead of globally. Windows
// are reset by wall-clock comparison since there is no TTL machinery here.
type memoryFallback struct {
	mu      sync.Mutex
	config  Config
	now     func() time.Time
	entries map[string]*windowEntry
}

type windowEntry struct {
	count     int
	windowEnd time.Time
}

func newMemoryFallback(cfg Config, now func() time.Time) *memoryFallback {
	return &memoryFallback{
		config:  cfg,
		now:     now,
		entries: make(map[string]*windowEntry),
	}
}

func (f *memoryFallback) allow(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	entry, ok := f.entries[key]
	if !ok || !now.Before(entry.windowEnd) {
		f.entries[key] = &windowEntry{count: 1, windowEnd: now.Add(f.config.Window)}
		return nil
	}

	entry.count++
	if entry.count > f.config.MaxAttempts {
		return &LimitExceededError{RetryAfter: entry.windowEnd.Sub(now)}
	}
	return nil
}

func (f *memoryFallback) reset(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
}
