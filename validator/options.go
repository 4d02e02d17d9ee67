package validator

import (
	"context"
	"time"

	"github.com/amp-labs/purchase-validator/config"
	"github.com/amp-labs/purchase-validator/debounce"
	"github.com/amp-labs/purchase-validator/remote"
)

type options struct {
	name      string
	validator Validator
	poster    remote.Poster
	resolver  UsernameResolver
	preparer  Preparer
	delay     time.Duration
	clock     debounce.Clock
	workers   int
	ctx       context.Context //nolint:containedctx
}

// Option configures a Service or a Dispatcher.
type Option func(*options)

func defaultOptions() options {
	return options{
		name:    "default",
		delay:   config.DefaultDebounce,
		workers: config.DefaultWorkers,
		ctx:     context.Background(),
	}
}

func readOptions(opts []Option) options {
	cfg := defaultOptions()

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.poster == nil {
		cfg.poster = remote.NewClient(cfg.ctx, config.DefaultRequestTimeout)
	}

	return cfg
}

// WithName labels metrics and logs, to tell several services apart.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithValidator sets the initial validator. Without it nothing is validated.
func WithValidator(v Validator) Option {
	return func(o *options) {
		o.validator = v
	}
}

// WithPoster replaces the HTTP client used for remote validation.
func WithPoster(p remote.Poster) Option {
	return func(o *options) {
		o.poster = p
	}
}

func WithUsernameResolver(r UsernameResolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

func WithPreparer(p Preparer) Option {
	return func(o *options) {
		o.preparer = p
	}
}

// WithDelay sets the debounce delay. Non-positive values are ignored.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithClock replaces the timer source of the debounce scheduler.
func WithClock(c debounce.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithWorkers bounds how many batches are posted concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithContext sets the context batches are dispatched with. It carries the
// logger and tracer; its cancellation aborts in-flight posts.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}
