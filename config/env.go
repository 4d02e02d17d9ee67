// Package config reads validator, logging and telemetry settings from the
// environment.
//
// Values are looked up in this order:
//  1. overrides attached to the context (WithOverride, WithValues)
//  2. the process environment
//
// Files (.env, .yml, .yaml) can be loaded with LoadFile and attached to a
// context with WithValues, which makes them behave like overrides.
package config

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const overridesKey contextKey = "config-overrides"

// WithOverride returns a context in which key reads as value.
func WithOverride(ctx context.Context, key string, value string) context.Context {
	return WithValues(ctx, map[string]string{key: value})
}

// WithValues returns a context in which every key of vals reads as its value.
// Values attached later win over values attached earlier.
func WithValues(ctx context.Context, vals map[string]string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	merged := make(map[string]string)

	if prev, ok := ctx.Value(overridesKey).(map[string]string); ok {
		for k, v := range prev {
			merged[k] = v
		}
	}

	for k, v := range vals {
		merged[k] = v
	}

	return context.WithValue(ctx, overridesKey, merged)
}

func lookup(ctx context.Context, key string) (string, bool) {
	if ctx != nil {
		if vals, ok := ctx.Value(overridesKey).(map[string]string); ok {
			if val, found := vals[key]; found {
				return val, true
			}
		}
	}

	return os.LookupEnv(key)
}

func get(ctx context.Context, key string) Reader[string] {
	val, ok := lookup(ctx, key)

	return Reader[string]{
		key:     key,
		present: ok,
		value:   val,
	}
}

// String reads a string.
func String(ctx context.Context, key string, opts ...Option[string]) Reader[string] {
	return apply(get(ctx, key), opts)
}

// Bool reads a boolean in any form strconv.ParseBool accepts.
func Bool(ctx context.Context, key string, opts ...Option[bool]) Reader[bool] {
	return apply(Map(get(ctx, key), func(s string) (bool, error) {
		return strconv.ParseBool(strings.TrimSpace(s))
	}), opts)
}

// Int reads a base-10 integer.
func Int(ctx context.Context, key string, opts ...Option[int]) Reader[int] {
	return apply(Map(get(ctx, key), func(s string) (int, error) {
		return strconv.Atoi(strings.TrimSpace(s))
	}), opts)
}

// Duration reads a time.Duration ("1.5s", "200ms").
func Duration(ctx context.Context, key string, opts ...Option[time.Duration]) Reader[time.Duration] {
	return apply(Map(get(ctx, key), func(s string) (time.Duration, error) {
		return time.ParseDuration(strings.TrimSpace(s))
	}), opts)
}

// URL reads an absolute URL.
func URL(ctx context.Context, key string, opts ...Option[*url.URL]) Reader[*url.URL] {
	return apply(Map(get(ctx, key), func(s string) (*url.URL, error) {
		return url.ParseRequestURI(strings.TrimSpace(s))
	}), opts)
}

// SlogLevel reads a log level ("debug", "info", "warn", "error", or "info+2" style).
func SlogLevel(ctx context.Context, key string, opts ...Option[slog.Level]) Reader[slog.Level] {
	return apply(Map(get(ctx, key), func(s string) (slog.Level, error) {
		var level slog.Level

		err := level.UnmarshalText([]byte(strings.TrimSpace(s)))

		return level, err
	}), opts)
}
