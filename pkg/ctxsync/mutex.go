// Package ctxsync provides a mutual exclusion lock whose acquisition can be
// abandoned when a context is done.
package ctxsync

import (
	"context"
)

// NewMutex creates a new unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{
		locked: make(chan struct{}, 1),
	}
}

// A Mutex is a mutual exclusion lock. The zero value is not usable, create it
// with [NewMutex].
type Mutex struct {
	locked chan struct{}
}

// Lock locks the mutex with a context.Background()
func (m *Mutex) Lock() {
	_ = m.LockWithContext(context.Background())
}

// LockWithContext locks until Unlock is called or context is cancelled. A
// context that is already done never acquires the lock.
func (m *Mutex) LockWithContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.locked <- struct{}{}:
		return nil
	}
}

// TryLock tries to lock m and reports whether it succeeded.
func (m *Mutex) TryLock() bool {
	select {
	case m.locked <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock unlocks m. It panics if m is not locked.
func (m *Mutex) Unlock() {
	select {
	case <-m.locked:
	default:
		panic("ctxsync: unlock of unlocked mutex")
	}
}
