package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"
)

const (
	DefaultDebounce       = 1500 * time.Millisecond
	DefaultWorkers        = 10
	DefaultRequestTimeout = 30 * time.Second
	DefaultDNSRefresh     = 5 * time.Minute

	defaultServiceVersion = "1.0.0"
	defaultOTLPTimeout    = 5 * time.Second
)

var (
	errNotPositive   = errors.New("must be positive")
	errInvalidOutput = errors.New("must be stdout or stderr")
)

// Validator holds the settings of the validation dispatcher.
type Validator struct {
	// URL is the validation endpoint. Nil means no validator is configured
	// and every product validates successfully without any network call.
	URL *url.URL

	// Debounce is the quiet period after the last request before a batch fires.
	Debounce time.Duration

	// Workers bounds how many batches are posted concurrently.
	Workers int

	// Timeout bounds a single outbound validation call.
	Timeout time.Duration

	// DNSCache enables the caching resolver in the HTTP transport.
	DNSCache bool

	// DNSRefresh is how often the DNS cache is refreshed. Zero disables it.
	DNSRefresh time.Duration
}

// LoadValidator reads the VALIDATOR_* variables.
func LoadValidator(ctx context.Context) (Validator, error) {
	var cfg Validator

	endpoint := URL(ctx, "VALIDATOR_URL")
	if endpoint.present {
		u, err := endpoint.Value()
		if err != nil {
			return cfg, err
		}

		cfg.URL = u
	}

	debounce, err := Duration(ctx, "VALIDATOR_DEBOUNCE",
		Default(DefaultDebounce), Validate(positive[time.Duration])).Value()
	if err != nil {
		return cfg, err
	}

	workers, err := Int(ctx, "VALIDATOR_WORKERS",
		Default(DefaultWorkers), Validate(positive[int])).Value()
	if err != nil {
		return cfg, err
	}

	timeout, err := Duration(ctx, "VALIDATOR_TIMEOUT",
		Default(DefaultRequestTimeout), Validate(positive[time.Duration])).Value()
	if err != nil {
		return cfg, err
	}

	dnsCache, err := Bool(ctx, "VALIDATOR_DNS_CACHE", Default(true)).Value()
	if err != nil {
		return cfg, err
	}

	dnsRefresh, err := Duration(ctx, "VALIDATOR_DNS_REFRESH", Default(DefaultDNSRefresh)).Value()
	if err != nil {
		return cfg, err
	}

	cfg.Debounce = debounce
	cfg.Workers = workers
	cfg.Timeout = timeout
	cfg.DNSCache = dnsCache
	cfg.DNSRefresh = max(dnsRefresh, 0)

	return cfg, nil
}

// Logging holds the LOG_* settings.
type Logging struct {
	JSON         bool
	Level        slog.Level
	LegacyLevel  slog.Level
	Output       *os.File
	OTLPEndpoint string
}

// LoadLogging reads LOG_JSON, LOG_LEVEL, LEGACY_LOG_LEVEL, LOG_OUTPUT and
// OTEL_EXPORTER_OTLP_LOGS_ENDPOINT.
func LoadLogging(ctx context.Context) (Logging, error) {
	var cfg Logging

	var err error

	if cfg.JSON, err = Bool(ctx, "LOG_JSON", Default(false)).Value(); err != nil {
		return cfg, err
	}

	if cfg.Level, err = SlogLevel(ctx, "LOG_LEVEL", Default(slog.LevelInfo)).Value(); err != nil {
		return cfg, err
	}

	if cfg.LegacyLevel, err = SlogLevel(ctx, "LEGACY_LOG_LEVEL", Default(slog.LevelInfo)).Value(); err != nil {
		return cfg, err
	}

	output := Map(String(ctx, "LOG_OUTPUT", Default("stdout")), func(name string) (*os.File, error) {
		switch name {
		case "stdout":
			return os.Stdout, nil
		case "stderr":
			return os.Stderr, nil
		default:
			return nil, fmt.Errorf("%w: %q", errInvalidOutput, name)
		}
	})

	if cfg.Output, err = output.Value(); err != nil {
		return cfg, err
	}

	cfg.OTLPEndpoint = String(ctx, "OTEL_EXPORTER_OTLP_LOGS_ENDPOINT").ValueOrElse("")

	return cfg, nil
}

// Telemetry holds the OpenTelemetry tracing settings.
type Telemetry struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Enabled        bool
	Timeout        time.Duration
}

// LoadTelemetry reads the OTEL_* tracing variables. serviceName is used when
// OTEL_SERVICE_NAME isn't set.
func LoadTelemetry(ctx context.Context, serviceName string) (Telemetry, error) {
	var cfg Telemetry

	var err error

	if cfg.Enabled, err = Bool(ctx, "OTEL_ENABLED", Default(false)).Value(); err != nil {
		return cfg, err
	}

	defaultEndpoint := ""
	if _, ok := lookup(ctx, "KUBERNETES_SERVICE_HOST"); ok {
		defaultEndpoint = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"
	}

	if cfg.ServiceName, err = String(ctx, "OTEL_SERVICE_NAME", Default(serviceName)).Value(); err != nil {
		return cfg, err
	}

	if cfg.ServiceVersion, err = String(ctx, "OTEL_SERVICE_VERSION",
		Default(defaultServiceVersion)).Value(); err != nil {
		return cfg, err
	}

	if cfg.Endpoint, err = String(ctx, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
		Default(defaultEndpoint)).Value(); err != nil {
		return cfg, err
	}

	if cfg.Timeout, err = Duration(ctx, "OTEL_EXPORTER_OTLP_TRACES_TIMEOUT",
		Default(defaultOTLPTimeout)).Value(); err != nil {
		return cfg, err
	}

	cfg.Environment = String(ctx, "APP_ENV").ValueOrElse("development")

	return cfg, nil
}

func positive[T int | time.Duration](v T) error {
	if v <= 0 {
		return errNotPositive
	}

	return nil
}
