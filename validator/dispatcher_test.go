package validator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/purchase-validator/product"
	"github.com/amp-labs/purchase-validator/remote"
	"github.com/amp-labs/purchase-validator/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func request(id string, cb Callback) Request {
	return Request{
		ID:         uuid.New(),
		Product:    product.New(id),
		Callback:   cb,
		Endpoint:   "https://validator.test",
		EnqueuedAt: time.Now(),
	}
}

func TestDispatchAll_RecordsOneSpanPerBatch(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	poster := &stubPoster{
		respond: func(body map[string]any) (*remote.Response, error) {
			if body["id"] == "down" {
				return nil, &remote.TransportError{Status: 502, Message: "Bad Gateway"}
			}

			return &remote.Response{OK: true}, nil
		},
	}

	dispatcher := NewDispatcher(WithName(t.Name()), WithPoster(poster), WithWorkers(2))
	t.Cleanup(dispatcher.Close)

	ctx := telemetry.WithTracer(testContext(t), provider.Tracer("test"))
	col := newCollector()

	dispatcher.DispatchAll(ctx, []Request{
		request("up", col.callback("up")),
		request("down", col.callback("down")),
		request("up", col.callback("up")),
	})

	assert.Len(t, col.get("up"), 2)
	assert.Len(t, col.get("down"), 1)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	byProduct := make(map[string]tracetest.SpanStub)

	for _, span := range spans {
		assert.Equal(t, "validator.dispatch", span.Name)

		for _, attr := range span.Attributes {
			if attr.Key == "product.id" {
				byProduct[attr.Value.AsString()] = span
			}
		}
	}

	require.Contains(t, byProduct, "up")
	require.Contains(t, byProduct, "down")

	assert.Contains(t, byProduct["up"].Attributes, attribute.Int("batch.size", 2))
	assert.Contains(t, byProduct["up"].Attributes, attribute.Bool("validation.ok", true))
	assert.Equal(t, codes.Unset, byProduct["up"].Status.Code)

	assert.Contains(t, byProduct["down"].Attributes, attribute.Bool("validation.ok", false))
	assert.Equal(t, codes.Error, byProduct["down"].Status.Code)
	assert.Equal(t, "Error 502: Bad Gateway", byProduct["down"].Status.Description)
}

func TestDispatchAll_Empty(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{}
	dispatcher := NewDispatcher(WithName(t.Name()), WithPoster(poster))
	t.Cleanup(dispatcher.Close)

	dispatcher.DispatchAll(testContext(t), nil)

	assert.Empty(t, poster.get())
}

func TestDispatchAll_AfterCloseRunsInline(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{}
	dispatcher := NewDispatcher(WithName(t.Name()), WithPoster(poster))
	dispatcher.Close()

	col := newCollector()
	dispatcher.DispatchAll(testContext(t), []Request{request("a", col.callback("a"))})

	assert.Len(t, col.get("a"), 1)
	assert.Len(t, poster.get(), 1)
}

func TestDispatchAll_NilResponse(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(WithName(t.Name()), WithPoster(remote.PosterFunc(
		func(context.Context, string, any) (*remote.Response, error) {
			return nil, nil //nolint:nilnil
		})))
	t.Cleanup(dispatcher.Close)

	col := newCollector()
	dispatcher.DispatchAll(testContext(t), []Request{request("a", col.callback("a"))})

	got := col.get("a")
	require.Len(t, got, 1)
	assert.True(t, got[0].IsFailure())
}

func TestDispatchAll_NilProductFailsAlone(t *testing.T) {
	t.Parallel()

	poster := &stubPoster{}
	dispatcher := NewDispatcher(WithName(t.Name()), WithPoster(poster))
	t.Cleanup(dispatcher.Close)

	col := newCollector()

	require.NotPanics(t, func() {
		dispatcher.DispatchAll(testContext(t), []Request{
			{ID: uuid.New(), Callback: col.callback("nil")},
			request("a", col.callback("a")),
			{ID: uuid.New(), Product: product.New("b")},
		})
	})

	got := col.get("nil")
	require.Len(t, got, 1)
	require.ErrorIs(t, got[0].Err, product.ErrNilProduct)

	assert.Len(t, col.get("a"), 1)
	assert.Len(t, poster.get(), 2)
}

func TestDispatchAll_RecordsQueueWait(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	dispatcher := NewDispatcher(WithName(t.Name()), WithPoster(&stubPoster{}))
	t.Cleanup(dispatcher.Close)

	old := request("a", nil)
	old.EnqueuedAt = time.Now().Add(-2 * time.Second)

	ctx := telemetry.WithTracer(testContext(t), provider.Tracer("test"))
	dispatcher.DispatchAll(ctx, []Request{old, request("a", nil)})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	var waited int64

	for _, attr := range spans[0].Attributes {
		if attr.Key == "batch.max_wait_ms" {
			waited = attr.Value.AsInt64()
		}
	}

	assert.GreaterOrEqual(t, waited, int64(2000))
}

func TestDispatcher_CloseFromCallback(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(WithName(t.Name()), WithPoster(&stubPoster{}), WithWorkers(1))
	col := newCollector()
	done := make(chan struct{})

	go func() {
		defer close(done)

		dispatcher.DispatchAll(testContext(t), []Request{
			request("a", func(Result) { dispatcher.Close() }),
			request("b", col.callback("b")),
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("DispatchAll blocked after Close from a callback")
	}

	assert.Len(t, col.get("b"), 1)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	require.NoError(t, dispatcher.Wait(ctx))
}

func TestDispatcher_WaitForRunningBatch(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})

	var once sync.Once

	poster := &stubPoster{
		respond: func(map[string]any) (*remote.Response, error) {
			once.Do(func() { close(started) })
			<-release

			return &remote.Response{OK: true}, nil
		},
	}

	dispatcher := NewDispatcher(WithName(t.Name()), WithPoster(poster))
	col := newCollector()

	go dispatcher.DispatchAll(testContext(t), []Request{request("a", col.callback("a"))})

	<-started

	short, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, dispatcher.Wait(short), context.DeadlineExceeded)
	assert.Empty(t, col.get("a"))

	close(release)

	ctx, cancelWait := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancelWait()

	require.NoError(t, dispatcher.Wait(ctx))
	assert.Len(t, col.get("a"), 1)
}
