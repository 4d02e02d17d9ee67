package future

// Promise is the write side of a Future. Only the first Success, Failure or
// Complete call has any effect; later calls are ignored.
type Promise[T any] struct {
	future *Future[T]
}

// Future returns the Future this promise completes.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Success completes the future with a value.
func (p *Promise[T]) Success(value T) {
	p.fulfill(value, nil)
}

// Failure completes the future with an error and the zero value.
func (p *Promise[T]) Failure(err error) {
	var zero T

	p.fulfill(zero, err)
}

// Complete completes the future with a (value, error) pair, matching the usual
// Go return convention.
func (p *Promise[T]) Complete(value T, err error) {
	p.fulfill(value, err)
}

// fulfill stores the result, wakes every waiter and runs the registered
// callbacks. The callback list is swapped out under the mutex together with
// closing the channel, so a callback is either run here or by OnResult, never both.
func (p *Promise[T]) fulfill(value T, err error) {
	fut := p.future

	fut.once.Do(func() {
		fut.value = value
		fut.err = err

		fut.mu.Lock()
		close(fut.resultReady)

		callbacks := fut.callbacks
		fut.callbacks = nil
		fut.mu.Unlock()

		for _, callback := range callbacks {
			invokeCallback(callback, value, err)
		}
	})
}
