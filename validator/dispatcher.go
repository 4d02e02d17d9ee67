package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/purchase-validator/coalesce"
	"github.com/amp-labs/purchase-validator/errors"
	"github.com/amp-labs/purchase-validator/future"
	"github.com/amp-labs/purchase-validator/logger"
	"github.com/amp-labs/purchase-validator/product"
	"github.com/amp-labs/purchase-validator/remote"
	"github.com/amp-labs/purchase-validator/telemetry"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"golang.org/x/text/unicode/norm"
)

// Request is one queued call for remote validation.
type Request struct {
	// ID correlates the request's log entries.
	ID uuid.UUID

	Product  *product.Product
	Callback Callback

	// Endpoint is the validator endpoint when the request was queued.
	Endpoint string

	EnqueuedAt time.Time
}

type batch = coalesce.Group[string, Request, Request]

// Dispatcher posts coalesced batches and fans each outcome out to its callbacks.
type Dispatcher struct {
	name     string
	poster   remote.Poster
	resolver UsernameResolver
	pool     pond.Pool

	closed   *atomic.Bool
	stopOnce sync.Once
	stopped  pond.Task
}

// NewDispatcher creates a Dispatcher. Only WithName, WithPoster,
// WithUsernameResolver, WithWorkers and WithContext apply.
func NewDispatcher(opts ...Option) *Dispatcher {
	return newDispatcher(readOptions(opts))
}

func newDispatcher(cfg options) *Dispatcher {
	return &Dispatcher{
		name:     cfg.name,
		poster:   cfg.poster,
		resolver: cfg.resolver,
		pool:     pond.NewPool(cfg.workers),
		closed:   atomic.NewBool(false),
	}
}

// DispatchAll groups requests by product id and posts each group once.
// Groups are posted concurrently and independently. It returns after every
// callback of every group has been called. A request without a product fails
// on its own without being posted.
func (d *Dispatcher) DispatchAll(ctx context.Context, requests []Request) {
	valid := make([]Request, 0, len(requests))

	for _, req := range requests {
		if req.Callback == nil {
			req.Callback = func(Result) {}
		}

		if err := req.Product.Validate(); err != nil {
			logger.Get(ctx).Warn("dropping validation request without a product",
				"service", d.name,
				"request_id", req.ID.String())

			req.Callback(Failed(err))

			continue
		}

		valid = append(valid, req)
	}

	batches := coalesce.By(valid, func(r Request) (string, Request, Request) {
		return r.Product.ID, r, r
	})

	logger.Get(ctx).Debug("dispatching validation batches",
		"service", d.name,
		"requests", len(valid),
		"batches", len(batches))

	var wg sync.WaitGroup

	for _, b := range batches {
		wg.Add(1)

		task := func() {
			defer wg.Done()

			d.dispatch(ctx, b)
		}

		// A closed dispatcher still owes the callers an answer.
		if d.closed.Load() {
			task()

			continue
		}

		if err := d.pool.Go(task); err != nil {
			task()
		}
	}

	wg.Wait()
}

// Close stops handing batches to the worker pool without waiting for the
// batches already running, so it's safe to call from a callback. Later
// batches run on the caller's goroutine.
func (d *Dispatcher) Close() {
	d.stop()
}

// Wait closes the dispatcher and blocks until the batches running on the
// pool have finished or ctx is done. Calling it from a callback blocks
// until ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	stopped := d.stop()

	select {
	case <-stopped.Done():
		return stopped.Wait()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) stop() pond.Task { //nolint:ireturn
	d.stopOnce.Do(func() {
		d.closed.Store(true)
		d.stopped = d.pool.Stop()
	})

	return d.stopped
}

func (d *Dispatcher) dispatch(ctx context.Context, b *batch) {
	start := time.Now()

	ctx, span := telemetry.Tracer(ctx).Start(ctx, "validator.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("product.id", b.Key),
			attribute.Int("batch.size", len(b.Waiters)),
		))
	defer span.End()

	fut, promise := future.New[Result]()

	oldest := start

	for _, waiter := range b.Waiters {
		queueWait.WithLabelValues(d.name).Observe(start.Sub(waiter.EnqueuedAt).Seconds())

		if waiter.EnqueuedAt.Before(oldest) {
			oldest = waiter.EnqueuedAt
		}

		cb := waiter.Callback

		fut.OnResult(func(result Result, _ error) {
			callbacksTotal.WithLabelValues(d.name).Inc()
			cb(result)
		})
	}

	span.SetAttributes(attribute.Int64("batch.max_wait_ms", start.Sub(oldest).Milliseconds()))

	result := d.post(ctx, b.Value)

	span.SetAttributes(attribute.Bool("validation.ok", result.OK))

	if result.IsFailure() {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Message())
	}

	batchesTotal.WithLabelValues(d.name, outcome(result)).Inc()

	promise.Success(result)

	dispatchDuration.WithLabelValues(d.name).Observe(time.Since(start).Seconds())
}

// post performs the outbound call for one batch. It never panics.
func (d *Dispatcher) post(ctx context.Context, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Failed(errors.FromPanic(r, debug.Stack()))
		}
	}()

	prod := req.Product
	d.normalizeUsername(ctx, prod)

	log := logger.Get(ctx).With(
		"service", d.name,
		"request_id", req.ID.String(),
		"product_id", prod.ID)

	if body, err := json.Marshal(prod); err == nil {
		log = log.With("body_hash", fmt.Sprintf("%016x", xxh3.Hash(body)))
	}

	log.Debug("posting validation request", "endpoint", req.Endpoint)

	rsp, err := d.poster.Post(ctx, req.Endpoint, prod)

	switch {
	case err != nil:
		result = Failed(err)
		log.Debug("validation request failed", "error", result.Message())
	case rsp == nil:
		result = Failed(errors.ErrNoVerdict)
	case rsp.OK:
		result = Ok(rsp.Data)
	default:
		result = Rejected(rsp.Data)
	}

	log.Debug("validation batch done", "ok", result.OK)

	return result
}

// normalizeUsername makes sure the outbound product either carries a
// non-empty application username or no such key at all.
func (d *Dispatcher) normalizeUsername(ctx context.Context, prod *product.Product) {
	if prod.AdditionalData == nil {
		prod.AdditionalData = make(map[string]any)
	}

	if _, ok := prod.ApplicationUsername(); ok {
		return
	}

	if d.resolver != nil {
		if name, ok := d.resolver.ApplicationUsername(ctx, prod); ok && name != "" {
			prod.AdditionalData[product.ApplicationUsernameKey] = norm.NFC.String(name)

			return
		}
	}

	delete(prod.AdditionalData, product.ApplicationUsernameKey)
}
