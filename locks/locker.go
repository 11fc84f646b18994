// Package locks serializes read-then-write sections on a named resource.
package locks

import (
	"context"
	"fmt"
	"sync"
)

// Locker acquires an exclusive hold on key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

func TableKey(id uint) string    { return fmt.Sprintf("table:%d", id) }
func OrderKey(id uint) string    { return fmt.Sprintf("order:%d", id) }
func CustomerKey(id uint) string { return fmt.Sprintf("customer:%d", id) }
func PaymentKey(reservationID uint) string {
	return fmt.Sprintf("reservation:%d:payment", reservationID)
}

type memoryEntry struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker is a per-key mutex map for a single process.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*memoryEntry)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &memoryEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *MemoryLocker) release(key string, e *memoryEntry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Held reports how many keys currently have holders or waiters.
func (l *MemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
