package service

import (
	"context"
	"sync"
	"time"
)

// slotLocks serializes the commit path per resource. Bookings on different
// resources never contend. Waiters are bounded: acquire gives up after the
// configured wait so contention surfaces as a retryable busy error instead of
// unbounded tail latency.
type slotLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newSlotLocks() *slotLocks {
	return &slotLocks{
		locks: make(map[string]chan struct{}),
	}
}

func (l *slotLocks) lockFor(resourceID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[resourceID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[resourceID] = ch
	}
	return ch
}

// acquire blocks until the resource lock is held, the wait elapses, or ctx is
// done. It returns false when the lock was not acquired.
func (l *slotLocks) acquire(ctx context.Context, resourceID string, wait time.Duration) bool {
	ch := l.lockFor(resourceID)

	select {
	case ch <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (l *slotLocks) release(resourceID string) {
	<-l.lockFor(resourceID)
}
