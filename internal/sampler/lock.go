package sampler

import (
	"context"
	"sync"
)

// LockSignal is a two-state broadcast of the screen lock. Waiters obtain
// a channel that is closed on the next transition.
type LockSignal struct {
	mu      sync.Mutex
	locked  bool
	changed chan struct{}
}

// NewLockSignal returns an unlocked signal.
func NewLockSignal() *LockSignal {
	return &LockSignal{changed: make(chan struct{})}
}

// Set records the lock state and wakes waiters if it changed.
func (l *LockSignal) Set(locked bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked == locked {
		return
	}
	l.locked = locked
	close(l.changed)
	l.changed = make(chan struct{})
}

// State returns the current state and a channel closed on the next change.
func (l *LockSignal) State() (bool, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked, l.changed
}

// Locked reports whether the screen is locked.
func (l *LockSignal) Locked() bool {
	locked, _ := l.State()
	return locked
}

// WaitUnlocked blocks until the signal is unlocked or ctx is done.
func (l *LockSignal) WaitUnlocked(ctx context.Context) error {
	for {
		locked, changed := l.State()
		if !locked {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// LockSource feeds screen lock transitions into a LockSignal until ctx is
// done.
type LockSource interface {
	Watch(ctx context.Context, signal *LockSignal) error
}
