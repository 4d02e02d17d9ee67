package validator

import (
	"context"
	"sync"
	"time"

	"github.com/amp-labs/purchase-validator/config"
	"github.com/amp-labs/purchase-validator/debounce"
	"github.com/amp-labs/purchase-validator/future"
	"github.com/amp-labs/purchase-validator/logger"
	"github.com/amp-labs/purchase-validator/product"
	"github.com/amp-labs/purchase-validator/remote"
	"github.com/amp-labs/purchase-validator/shutdown"
	"github.com/amp-labs/purchase-validator/transport"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Service is the entry point for product validation. It's safe for
// concurrent use.
//
// The remote path queues a copy of the product, so setting or removing
// additionalData.applicationUsername never touches the caller's value.
type Service struct {
	name       string
	ctx        context.Context //nolint:containedctx
	validator  *atomic.Pointer[Validator]
	preparer   Preparer
	scheduler  *debounce.Scheduler[Request]
	dispatcher *Dispatcher
	closeOnce  sync.Once

	// release undoes what NewFromConfig set up around the service.
	release []func()
}

// New creates a Service.
func New(opts ...Option) *Service {
	cfg := readOptions(opts)
	validator := cfg.validator

	svc := &Service{
		name:       cfg.name,
		ctx:        cfg.ctx,
		validator:  atomic.NewPointer(&validator),
		preparer:   cfg.preparer,
		dispatcher: newDispatcher(cfg),
	}

	svc.scheduler = debounce.New(svc.dispatcher.DispatchAll,
		debounce.WithName(cfg.name),
		debounce.WithDelay(cfg.delay),
		debounce.WithClock(cfg.clock),
		debounce.WithContext(cfg.ctx))

	return svc
}

// NewFromConfig creates a Service from loaded settings. The validator is
// RemoteEndpoint(cfg.URL) when a URL is set and NoValidator otherwise; opts
// are applied last.
//
// The service registers a shutdown hook that drains it before the process
// exits. Close unregisters the hook, so building and closing many services
// doesn't leak hooks. With DNS caching on, the cache is refreshed every
// cfg.DNSRefresh until Close.
func NewFromConfig(ctx context.Context, cfg config.Validator, opts ...Option) *Service {
	var transportOpts []transport.Option
	if cfg.DNSCache {
		transportOpts = append(transportOpts, transport.EnableDNSCache)
	}

	validator := NoValidator()
	if cfg.URL != nil {
		validator = RemoteEndpoint(cfg.URL.String())
	}

	base := []Option{
		WithContext(ctx),
		WithValidator(validator),
		WithDelay(cfg.Debounce),
		WithWorkers(cfg.Workers),
		WithPoster(remote.NewClient(ctx, cfg.Timeout, transportOpts...)),
	}

	svc := New(append(base, opts...)...)

	if cfg.DNSCache && cfg.DNSRefresh > 0 {
		refreshCtx, cancel := context.WithCancel(ctx)

		go transport.RefreshDNSCache(refreshCtx, cfg.DNSRefresh)

		svc.release = append(svc.release, cancel)
	}

	svc.release = append(svc.release, shutdown.BeforeShutdown("validator", func(ctx context.Context) {
		if err := svc.Shutdown(ctx); err != nil {
			logger.Get(ctx).Warn("validation batches still running at shutdown",
				"service", svc.name,
				"error", err)
		}
	}))

	return svc
}

// Validator returns the current validator.
func (s *Service) Validator() Validator {
	if v := s.validator.Load(); v != nil {
		return *v
	}

	return NoValidator()
}

// SetValidator replaces the validator. Calls already queued keep the
// endpoint they were queued with.
func (s *Service) SetValidator(v Validator) {
	s.validator.Store(&v)
}

// Validate validates p and reports the outcome to cb exactly once.
//
// With no validator cb runs before Validate returns. With a remote endpoint
// cb runs after the debounce delay, on a worker goroutine. A custom handler
// decides for itself.
func (s *Service) Validate(ctx context.Context, p *product.Product, cb Callback) {
	if cb == nil {
		cb = func(Result) {}
	}

	if err := p.Validate(); err != nil {
		cb(Failed(err))

		return
	}

	s.validate(ctx, p, cb, false)
}

// ValidateAsync is Validate with the outcome delivered through a Future.
func (s *Service) ValidateAsync(ctx context.Context, p *product.Product) *future.Future[Result] {
	fut, promise := future.New[Result]()

	s.Validate(ctx, p, promise.Success)

	return fut
}

func (s *Service) validate(ctx context.Context, p *product.Product, cb Callback, prepared bool) {
	validator := s.Validator()

	if validator.Kind() == KindNone {
		requestsTotal.WithLabelValues(s.name, pathBypass).Inc()
		cb(Ok(p))

		return
	}

	if s.preparer != nil && !prepared {
		prepareTotal.WithLabelValues(s.name).Inc()

		var once sync.Once

		s.preparer.Prepare(ctx, p, func() {
			once.Do(func() {
				s.validate(ctx, p, cb, true)
			})
		})

		return
	}

	switch validator.Kind() {
	case KindRemote:
		requestsTotal.WithLabelValues(s.name, pathRemote).Inc()
		s.enqueue(ctx, validator.Endpoint(), p, cb)
	case KindCustom:
		requestsTotal.WithLabelValues(s.name, pathCustom).Inc()
		validator.Handler()(ctx, p, cb)
	case KindNone:
	}
}

func (s *Service) enqueue(ctx context.Context, endpoint string, p *product.Product, cb Callback) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	req := Request{
		ID:         id,
		Product:    p.Clone(),
		Callback:   cb,
		Endpoint:   endpoint,
		EnqueuedAt: time.Now(),
	}

	if err := s.scheduler.Enqueue(req); err != nil {
		logger.Get(ctx).Warn("validation request refused",
			"service", s.name,
			"product_id", p.ID,
			"error", err)

		cb(Failed(err))

		return
	}

	logger.Get(ctx).Debug("validation request queued",
		"service", s.name,
		"request_id", id.String(),
		"product_id", p.ID)
}

// Pending returns how many requests wait for the next batch.
func (s *Service) Pending() int {
	return s.scheduler.Pending()
}

// Flush dispatches queued requests now rather than after the delay.
func (s *Service) Flush() {
	s.scheduler.Flush()
}

// Close dispatches whatever is queued and stops handing batches to the
// workers, without waiting for batches already posted. It's safe to call
// from a callback. Requests made afterwards on the remote path fail with
// errors.ErrClosed.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.dispatcher.Close()
		s.scheduler.Close()

		for _, release := range s.release {
			release()
		}

		logger.Get(s.ctx).Debug("validation service closed", "service", s.name)
	})
}

// Shutdown closes the service and waits until every posted batch has
// delivered its outcome, or ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.Close()

	return s.dispatcher.Wait(ctx)
}
