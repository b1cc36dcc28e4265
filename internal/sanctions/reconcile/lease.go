package reconcile

import (
	"context"
	"sync"

	dErrors "pldft/pkg/domain-errors"
)

// Leaser grants exclusive leases on a key. Release must be called exactly
// once per successful Acquire.
type Leaser interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLeases serializes holders within one process.
type LocalLeases struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLeases() *LocalLeases {
	return &LocalLeases{slots: make(map[string]chan struct{})}
}

func (l *LocalLeases) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire blocks until the key is free or ctx is done.
func (l *LocalLeases) Acquire(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "wait for lease "+key)
	}
}
