package a

import (
	"context"
	"sync"
)

type locker struct{}

func (locker) Lock(ctx context.Context, branch string) (func(), error) {
	return func() {}, nil
}

func bad(ctx context.Context, l locker) error {
	_, err := l.Lock(ctx, "master") // want "unlock function from Lock assigned to _"
	return err
}

func badDiscarded(ctx context.Context, l locker) {
	l.Lock(ctx, "master") // want "result of Lock discarded"
}

func good(ctx context.Context, l locker) error {
	unlock, err := l.Lock(ctx, "master")
	if err != nil {
		return err
	}
	defer unlock()
	return nil
}

func goodMutex(mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()
}
