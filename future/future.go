// Package future provides a single-assignment result that any number of
// waiters can block on or subscribe to.
//
// The validator uses one Future per coalesced batch: the batch's outbound call
// completes the Promise once, and every caller that was merged into the batch
// receives the same value.
//
//	fut, promise := future.New[int]()
//
//	fut.OnResult(func(v int, err error) { ... })
//
//	go func() {
//	    promise.Complete(compute())
//	}()
//
//	v, err := fut.Await()
package future

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/amp-labs/purchase-validator/errors"
	"github.com/amp-labs/purchase-validator/logger"
)

// Future is the read side of an asynchronous result.
type Future[T any] struct {
	once        sync.Once
	mu          sync.Mutex
	resultReady chan struct{}

	value T
	err   error

	callbacks []func(T, error)
}

// New creates a Future and the Promise that completes it.
func New[T any]() (*Future[T], *Promise[T]) {
	fut := &Future[T]{
		resultReady: make(chan struct{}),
	}

	return fut, &Promise[T]{future: fut}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.resultReady
}

// Await blocks until the result is available.
func (f *Future[T]) Await() (T, error) { //nolint:ireturn
	<-f.resultReady

	return f.value, f.err
}

// AwaitContext blocks until the result is available or ctx is done.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) { //nolint:ireturn
	select {
	case <-f.resultReady:
		return f.value, f.err
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}
}

// OnResult registers a callback for the result. Callbacks run on the goroutine
// that completes the promise, in registration order; one registered after
// completion runs immediately on the caller's goroutine. A panicking callback is
// logged and doesn't prevent the others from running.
func (f *Future[T]) OnResult(callback func(T, error)) {
	if callback == nil {
		return
	}

	f.mu.Lock()

	select {
	case <-f.resultReady:
		f.mu.Unlock()

		invokeCallback(callback, f.value, f.err)

		return
	default:
	}

	f.callbacks = append(f.callbacks, callback)
	f.mu.Unlock()
}

func invokeCallback[T any](callback func(T, error), value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().Error("panic encountered in future.OnResult callback",
				"error", errors.FromPanic(r, debug.Stack()))
		}
	}()

	callback(value, err)
}
