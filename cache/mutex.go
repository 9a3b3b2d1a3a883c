package cache

import "context"

// ctxMutex is a one-slot channel mutex whose acquisition honors context
// cancellation. Once acquired, the holder runs to completion; only the
// wait is interruptible.
type ctxMutex struct {
	ch chan struct{}
}

func newCtxMutex() ctxMutex {
	return ctxMutex{ch: make(chan struct{}, 1)}
}

func (m ctxMutex) lock(ctx context.Context) error {
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m ctxMutex) unlock() {
	<-m.ch
}
