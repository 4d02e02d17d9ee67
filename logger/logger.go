// Package logger configures slog for the validator and hands out loggers that
// carry context-scoped values (subsystem, pod, batch and request ids).
package logger

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/amp-labs/purchase-validator/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Default subsystem, set by ConfigureLogging.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex serializes ConfigureLoggingWithOptions, which swaps global state.
var configMutex sync.Mutex //nolint:gochecknoglobals

// logProvider is the OTLP log provider, when one is configured.
var logProvider atomic.Pointer[sdklog.LoggerProvider] //nolint:gochecknoglobals

type contextKey string

// Options is used to configure logging.
type Options struct {
	Subsystem   string
	JSON        bool
	MinLevel    slog.Level
	LegacyLevel slog.Level
	Output      io.Writer

	// OTLPEndpoint, when set, also ships every record to an OTLP/HTTP
	// log collector (e.g. http://localhost:4318/v1/logs).
	OTLPEndpoint string
}

// Option is a functional option for ConfigureLogging.
type Option func(*Options)

// WithOutput overrides the configured output.
func WithOutput(w io.Writer) Option {
	return func(o *Options) {
		o.Output = w
	}
}

// ConfigureLoggingWithOptions configures the default slog logger and the legacy
// log package, and returns the new default logger.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.MinLevel}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	if opts.OTLPEndpoint != "" {
		if otlpHandler, err := newOTLPHandler(opts); err != nil {
			slog.New(handler).Warn("OTLP log export disabled", "endpoint", opts.OTLPEndpoint, "error", err)
		} else {
			handler = &teeHandler{handlers: []slog.Handler{handler, otlpHandler}}
		}
	}

	logger := slog.New(handler)

	slog.SetDefault(logger)

	// Third-party packages using the log package end up in slog too.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, opts.LegacyLevel)

	subsystem.Store(opts.Subsystem)

	return logger
}

func newOTLPHandler(opts Options) (slog.Handler, error) {
	exporter, err := otlploghttp.New(context.Background(), otlploghttp.WithEndpointURL(opts.OTLPEndpoint))
	if err != nil {
		return nil, err
	}

	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)))

	if prev := logProvider.Swap(provider); prev != nil {
		_ = prev.Shutdown(context.Background())
	}

	name := opts.Subsystem
	if name == "" {
		name = "purchase-validator"
	}

	return otelslog.NewHandler(name, otelslog.WithLoggerProvider(provider)), nil
}

// ConfigureLogging configures logging from LOG_JSON, LOG_LEVEL, LEGACY_LOG_LEVEL,
// LOG_OUTPUT and OTEL_EXPORTER_OTLP_LOGS_ENDPOINT. It exits the process if any
// of them is malformed.
func ConfigureLogging(ctx context.Context, app string, opts ...Option) *slog.Logger {
	cfg, err := config.LoadLogging(ctx)
	if err != nil {
		slog.Error("error reading logging configuration", "error", err)
		os.Exit(1)
	}

	options := Options{
		Subsystem:    app,
		JSON:         cfg.JSON,
		MinLevel:     cfg.Level,
		LegacyLevel:  cfg.LegacyLevel,
		Output:       cfg.Output,
		OTLPEndpoint: cfg.OTLPEndpoint,
	}

	for _, o := range opts {
		o(&options)
	}

	return ConfigureLoggingWithOptions(options)
}

// Shutdown flushes and stops the OTLP log exporter, if there is one.
func Shutdown(ctx context.Context) error {
	provider := logProvider.Swap(nil)
	if provider == nil {
		return nil
	}

	return provider.Shutdown(ctx)
}

// WithLogger makes Get return l (plus context values) instead of the default logger.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("logger"), l)
}

// WithMuted silences every logger obtained from the returned context.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("mute"), muted)
}

func isMuted(ctx context.Context) bool {
	muted, ok := ctx.Value(contextKey("mute")).(bool)

	return ok && muted
}

// WithSubsystem overrides the default subsystem for this context.
func WithSubsystem(ctx context.Context, subsystem string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("subsystem"), subsystem)
}

// GetSubsystem returns the context's subsystem, or the configured default.
func GetSubsystem(ctx context.Context) string { //nolint:contextcheck
	if ctx == nil {
		ctx = context.Background()
	}

	if val, ok := ctx.Value(contextKey("subsystem")).(string); ok {
		return val
	}

	if val, ok := subsystem.Load().(string); ok {
		return val
	}

	return ""
}

// With returns a new context with the given key-value pairs added.
// Every logger obtained from it via Get carries them.
func With(ctx context.Context, values ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(values) == 0 {
		return ctx
	}

	prev := getValues(ctx)
	vals := make([]any, 0, len(prev)+len(values))
	vals = append(vals, prev...)
	vals = append(vals, values...)

	return context.WithValue(ctx, contextKey("loggerValues"), vals)
}

func getValues(ctx context.Context) []any {
	vals, _ := ctx.Value(contextKey("loggerValues")).([]any)

	return vals
}

// hostname is the pod name in k8s, the machine name elsewhere.
var hostname = sync.OnceValue(func() string { //nolint:gochecknoglobals
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}

	return h
})

var nullLogger = slog.New(nullHandler{}) //nolint:gochecknoglobals

// Get returns a logger for the first non-nil context given (or the background
// context), decorated with the subsystem, the pod name and any values added with With.
//
//nolint:contextcheck
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := context.Background()

	for _, c := range ctx {
		if c != nil {
			realCtx = c //nolint:fatcontext

			break
		}
	}

	if isMuted(realCtx) {
		return nullLogger
	}

	base, ok := realCtx.Value(contextKey("logger")).(*slog.Logger)
	if !ok || base == nil {
		base = slog.Default()
	}

	logger := base.With(
		"subsystem", GetSubsystem(realCtx),
		"pod", hostname())

	if vals := getValues(realCtx); vals != nil {
		logger = logger.With(vals...)
	}

	return logger
}
