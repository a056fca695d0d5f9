package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker implements Locker with process-local mutexes. It serializes
// assignment and removal flows on a single node; use the Redis locker when
// more than one instance runs against the same database.
type MemoryLocker struct {
	mu      sync.Mutex
	held    map[string]memoryLease
	stopCh  chan struct{}
	stopped bool
}

// memoryLease records who holds a key and until when.
type memoryLease struct {
	token     string
	expiresAt time.Time
}

func (l memoryLease) expired(now time.Time) bool {
	return now.After(l.expiresAt)
}

// NewMemoryLocker creates an in-memory locker and starts its expiry sweep.
func NewMemoryLocker() *MemoryLocker {
	m := &MemoryLocker{
		held:   make(map[string]memoryLease),
		stopCh: make(chan struct{}),
	}

	go m.sweepLoop()

	return m
}

// sweepLoop drops expired leases so abandoned keys do not accumulate.
func (m *MemoryLocker) sweepLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryLocker) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, lease := range m.held {
		if lease.expired(now) {
			delete(m.held, key)
		}
	}
}

// Stop stops the expiry sweep goroutine.
func (m *MemoryLocker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stopped {
		close(m.stopCh)
		m.stopped = true
	}
}

// Acquire takes the lock for key if it is free or its lease has expired.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if lease, ok := m.held[key]; ok && !lease.expired(now) {
		return false, nil
	}

	m.held[key] = memoryLease{
		token:     uuid.NewString(),
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

// AcquireWithRetry retries Acquire up to maxRetries times, sleeping
// retryDelay between attempts.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		acquired, err := m.Acquire(ctx, key, ttl)
		if err != nil || acquired {
			return acquired, err
		}
		if attempt >= maxRetries {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// Release frees the lock for key. It reports whether a lease was held.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[key]; !ok {
		return false, nil
	}
	delete(m.held, key)
	return true, nil
}

// Extend pushes out the lease expiry for a currently held key.
func (m *MemoryLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	lease, ok := m.held[key]
	if !ok {
		return false, nil
	}
	if lease.expired(now) {
		delete(m.held, key)
		return false, nil
	}

	lease.expiresAt = now.Add(ttl)
	m.held[key] = lease
	return true, nil
}

// IsHeld reports whether key is locked with an unexpired lease.
func (m *MemoryLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.held[key]
	if !ok {
		return false, nil
	}
	if lease.expired(time.Now()) {
		delete(m.held, key)
		return false, nil
	}
	return true, nil
}

var _ Locker = (*MemoryLocker)(nil)
