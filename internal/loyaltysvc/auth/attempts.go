package auth

import (
	"context"
	"sync"
	"time"
)

// Attempts is the failed-PIN state of one client.
type Attempts struct {
	Count     int
	Remaining time.Duration // until the window resets; zero when Count is zero
}

// AttemptStore counts failed PIN attempts per client in a fixed window that
// starts at the first failure.
type AttemptStore interface {
	Get(ctx context.Context, key string) (Attempts, error)
	// Fail records one failure and returns the updated state.
	Fail(ctx context.Context, key string, window time.Duration) (Attempts, error)
	Reset(ctx context.Context, key string) error
}

type attemptEntry struct {
	count   int
	expires time.Time
}

// MemoryAttemptStore keeps attempts in process memory. Counts are not shared
// between instances.
type MemoryAttemptStore struct {
	mu      sync.Mutex
	entries map[string]attemptEntry
	now     func() time.Time
}

func NewMemoryAttemptStore(now func() time.Time) *MemoryAttemptStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryAttemptStore{entries: map[string]attemptEntry{}, now: now}
}

func (m *MemoryAttemptStore) live(key string, now time.Time) (attemptEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !now.Before(e.expires) {
		delete(m.entries, key)
		return attemptEntry{}, false
	}
	return e, true
}

func (m *MemoryAttemptStore) Get(_ context.Context, key string) (Attempts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.live(key, now)
	if !ok {
		return Attempts{}, nil
	}
	return Attempts{Count: e.count, Remaining: e.expires.Sub(now)}, nil
}

func (m *MemoryAttemptStore) Fail(_ context.Context, key string, window time.Duration) (Attempts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.live(key, now)
	if !ok {
		e = attemptEntry{expires: now.Add(window)}
	}
	e.count++
	m.entries[key] = e
	return Attempts{Count: e.count, Remaining: e.expires.Sub(now)}, nil
}

func (m *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
