// Package debounce accumulates items and hands them over in one batch once
// no new item has arrived for a fixed delay.
//
// Every Enqueue restarts the delay, so a burst is processed delay after its
// last item rather than its first. There is no cap on how long a continuous
// stream can postpone a flush, nor on how many items can pile up.
//
// When the timer fires, the handle is cleared and the queue is swapped for an
// empty one before the flush function runs. Items enqueued while a flush is in
// progress therefore start a new cycle; they are neither lost nor handed to the
// running flush.
package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/amp-labs/purchase-validator/errors"
	"github.com/amp-labs/purchase-validator/logger"
)

// DefaultDelay is the quiet period used when WithDelay isn't given.
const DefaultDelay = 1500 * time.Millisecond

// FlushFunc receives every item queued since the previous flush, in enqueue order.
type FlushFunc[T any] func(ctx context.Context, items []T)

type options struct {
	name  string
	delay time.Duration
	clock Clock
	ctx   context.Context //nolint:containedctx
}

// Option configures a Scheduler.
type Option func(*options)

// WithDelay sets the quiet period. Non-positive values are ignored.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithName labels the scheduler's metrics and logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithContext sets the context handed to the flush function.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// Scheduler owns a queue and at most one pending timer.
type Scheduler[T any] struct {
	mu     sync.Mutex
	queue  []T
	timer  Timer
	gen    uint64
	closed bool

	flush FlushFunc[T]
	opts  options
}

// New creates a Scheduler that calls flush with each drained batch.
func New[T any](flush FlushFunc[T], opts ...Option) *Scheduler[T] {
	cfg := options{
		name:  "default",
		delay: DefaultDelay,
		clock: RealClock(),
		ctx:   context.Background(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	queueDepth.WithLabelValues(cfg.name).Set(0)

	return &Scheduler[T]{
		flush: flush,
		opts:  cfg,
	}
}

// Delay returns the configured quiet period.
func (s *Scheduler[T]) Delay() time.Duration {
	return s.opts.delay
}

// Enqueue appends an item and (re)starts the timer. It fails only once the
// scheduler is closed.
func (s *Scheduler[T]) Enqueue(item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrClosed
	}

	s.queue = append(s.queue, item)

	enqueued.WithLabelValues(s.opts.name).Inc()
	queueDepth.WithLabelValues(s.opts.name).Set(float64(len(s.queue)))

	if s.timer != nil {
		s.timer.Stop()
		restarts.WithLabelValues(s.opts.name).Inc()
	}

	// Each timer remembers the generation it was armed for. A timer whose
	// callback was already running when it got replaced sees a newer
	// generation and backs off.
	s.gen++
	gen := s.gen
	s.timer = s.opts.clock.AfterFunc(s.opts.delay, func() {
		s.fire(gen)
	})

	logger.Get(s.opts.ctx).Debug("debounce timer armed",
		"scheduler", s.opts.name,
		"queued", len(s.queue),
		"delay", s.opts.delay)

	return nil
}

// Pending returns the number of queued items.
func (s *Scheduler[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

// Flush drains the queue right away instead of waiting for the timer.
// It's a no-op when nothing is queued.
func (s *Scheduler[T]) Flush() {
	s.mu.Lock()

	if s.timer != nil {
		s.timer.Stop()
	}

	s.gen++

	items := s.take()
	s.mu.Unlock()

	s.run(items)
}

// Close flushes whatever is queued and rejects further items.
func (s *Scheduler[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.Flush()
}

func (s *Scheduler[T]) fire(gen uint64) {
	s.mu.Lock()

	if gen != s.gen {
		s.mu.Unlock()

		return
	}

	items := s.take()
	s.mu.Unlock()

	s.run(items)
}

// take clears the timer handle and swaps out the queue. Callers hold s.mu.
func (s *Scheduler[T]) take() []T {
	s.timer = nil

	items := s.queue
	s.queue = nil

	queueDepth.WithLabelValues(s.opts.name).Set(0)

	return items
}

func (s *Scheduler[T]) run(items []T) {
	if len(items) == 0 {
		return
	}

	flushes.WithLabelValues(s.opts.name).Inc()
	batchSize.WithLabelValues(s.opts.name).Observe(float64(len(items)))

	logger.Get(s.opts.ctx).Debug("debounce flush",
		"scheduler", s.opts.name,
		"items", len(items))

	s.flush(s.opts.ctx, items)
}
