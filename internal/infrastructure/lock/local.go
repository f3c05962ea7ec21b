// Package lock provides ports.BranchLocker implementations.
package lock

import (
	"context"
	"sync"

	logging "github.com/op/go-logging"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

var log = logging.MustGetLogger("lock")

var (
	_ ports.BranchLocker = (*LocalLocker)(nil)
	_ ports.BranchLocker = (*RedisLocker)(nil)
)

// LocalLocker serializes merges per branch within one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[entities.Branch]chan struct{}
}

// NewLocalLocker creates a new LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[entities.Branch]chan struct{})}
}

func (l *LocalLocker) slot(dest entities.Branch) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[dest]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[dest] = ch
	}
	return ch
}

// Lock blocks until the branch is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, dest entities.Branch) (func(), error) {
	ch := l.slot(dest)
	select {
	case ch <- struct{}{}:
	default:
		log.Debugf("waiting for lock on %s", dest)
		select {
		case ch <- struct{}{}:
		case <-ctx.Done():
			return nil, lockHeld(dest, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
