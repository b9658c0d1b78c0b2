package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

// keyedLocks hands out one mutex per key. Entries are dropped once nobody
// holds or waits for them.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

func (l *keyedLocks) ref(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *keyedLocks) unref(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// acquire waits for key until timeout or ctx ends. A timeout (either the lock
// timeout or the context deadline) returns storage.ErrLockTimeout.
func (l *keyedLocks) acquire(ctx context.Context, key string, timeout time.Duration) error {
	e := l.ref(key)

	select {
	case e.ch <- struct{}{}:
		return nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-expired:
		l.unref(key, e)
		return storage.ErrLockTimeout
	case <-ctx.Done():
		l.unref(key, e)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", storage.ErrLockTimeout, ctx.Err())
		}
		return ctx.Err()
	}
}

func (l *keyedLocks) release(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-e.ch
	l.unref(key, e)
}
