package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker keeps the same acquire-if-absent/TTL semantics as the Redis
// implementation, for tests and single-process runs.
type MemoryLocker struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &MemoryLocker{
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, saleID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiry, held := l.entries[key(saleID)]; held && now.Before(expiry) {
		return false, nil
	}

	l.entries[key(saleID)] = now.Add(l.ttl)
	return true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, saleID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, key(saleID))
}

// Held reports whether the sale's lock is currently present and unexpired.
func (l *MemoryLocker) Held(saleID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, held := l.entries[key(saleID)]
	return held && time.Now().Before(expiry)
}
