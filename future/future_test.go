package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

func TestNew_Success(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	go func() {
		promise.Success(42)
	}()

	result, err := fut.Await()

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestNew_Error(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	go func() {
		promise.Failure(errTest)
	}()

	result, err := fut.Await()

	require.ErrorIs(t, err, errTest)
	assert.Equal(t, 0, result)
}

func TestPromise_OnlyFirstCompletionCounts(t *testing.T) {
	t.Parallel()

	fut, promise := New[string]()

	promise.Success("first")
	promise.Success("second")
	promise.Failure(errTest)

	result, err := fut.Await()

	require.NoError(t, err)
	assert.Equal(t, "first", result)
	assert.Same(t, fut, promise.Future())
}

func TestAwaitContext_Timeout(t *testing.T) {
	t.Parallel()

	fut, _ := New[int]()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := fut.AwaitContext(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOnResult_AllWaitersGetSameValueInOrder(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	var (
		mu    sync.Mutex
		order []int
	)

	for i := range 25 {
		fut.OnResult(func(v int, err error) {
			assert.NoError(t, err)
			assert.Equal(t, 7, v)

			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	promise.Success(7)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, order, 25)

	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestOnResult_AfterCompletionRunsImmediately(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()
	promise.Success(3)

	called := false

	fut.OnResult(func(v int, err error) {
		called = true

		assert.Equal(t, 3, v)
	})

	assert.True(t, called)
}

func TestOnResult_PanicDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	fut.OnResult(func(int, error) {
		panic("callback exploded")
	})

	reached := false

	fut.OnResult(func(int, error) {
		reached = true
	})

	promise.Success(1)

	assert.True(t, reached)
}

func TestDone(t *testing.T) {
	t.Parallel()

	fut, promise := New[int]()

	select {
	case <-fut.Done():
		t.Fatal("future should not be done yet")
	default:
	}

	promise.Success(1)

	<-fut.Done()
}
