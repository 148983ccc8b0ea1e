package store

import (
	"context"
	"sync"
)

// Locker serialises read-modify-write cycles on a collection.
type Locker interface {
	// Lock blocks until c is held or ctx is done. The returned unlock must be
	// called exactly once.
	Lock(ctx context.Context, c Collection) (unlock func(), err error)
}

// LocalLocker is a Locker for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[Collection]chan struct{}
}

// NewLocalLocker returns a ready LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[Collection]chan struct{})}
}

func (l *LocalLocker) slot(c Collection) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[c]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[c] = ch
	}
	return ch
}

// Lock implements Locker.Lock.
func (l *LocalLocker) Lock(ctx context.Context, c Collection) (func(), error) {
	ch := l.slot(c)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
