package config

import (
	"errors"
	"fmt"
)

var (
	ErrBadEnvVar     = errors.New("error parsing environment variable")
	ErrEnvVarMissing = errors.New("missing environment variable")
)

// Reader is a value read from the environment (or an override). It tracks
// whether the key was present and whether parsing failed, so callers can
// pick between defaults and errors at the point of use.
type Reader[A any] struct {
	key     string
	present bool
	err     error

	value A
}

// Key returns the key of the environment variable.
func (r Reader[A]) Key() string {
	return r.key
}

// Value returns the value of the environment variable, or an error if the value
// is missing or if there was an error parsing it.
func (r Reader[A]) Value() (A, error) { //nolint:ireturn
	if r.err != nil {
		return r.value, fmt.Errorf("%w %s: %w", ErrBadEnvVar, r.key, r.err)
	}

	if !r.present {
		return r.value, fmt.Errorf("%w %s", ErrEnvVarMissing, r.key)
	}

	return r.value, nil
}

// ValueOrElse returns the value, or v if it's missing or malformed.
func (r Reader[A]) ValueOrElse(v A) A { //nolint:ireturn
	if r.present && r.err == nil {
		return r.value
	}

	return v
}

// HasValue is true when the key was present and parsed cleanly.
func (r Reader[A]) HasValue() bool {
	return r.present && r.err == nil
}

// WithDefault fills in v when the key is missing. A present but malformed
// value keeps its error.
func (r Reader[A]) WithDefault(v A) Reader[A] { //nolint:ireturn
	if r.present {
		return r
	}

	return Reader[A]{
		key:     r.key,
		present: true,
		value:   v,
	}
}

// Map transforms the value when there is one.
func (r Reader[A]) Map(f func(A) (A, error)) Reader[A] { //nolint:ireturn
	return Map(r, f)
}

// Map converts a Reader from one type to another. Missing values and
// earlier errors pass through untouched.
func Map[A any, B any](rdr Reader[A], f func(A) (B, error)) Reader[B] {
	if !rdr.present || rdr.err != nil {
		return Reader[B]{
			key:     rdr.key,
			present: rdr.present,
			err:     rdr.err,
		}
	}

	val, err := f(rdr.value)

	return Reader[B]{
		key:     rdr.key,
		present: true,
		err:     err,
		value:   val,
	}
}

// Option modifies a Reader; see Default and Validate.
type Option[T any] func(Reader[T]) Reader[T]

// Default provides a default value for the Reader.
func Default[T any](dfl T) Option[T] {
	return func(rdr Reader[T]) Reader[T] {
		return rdr.WithDefault(dfl)
	}
}

// Validate runs f on the value; a non-nil error becomes the Reader's error.
func Validate[T any](f func(T) error) Option[T] {
	return func(rdr Reader[T]) Reader[T] {
		return rdr.Map(func(val T) (T, error) {
			return val, f(val)
		})
	}
}

func apply[T any](rdr Reader[T], opts []Option[T]) Reader[T] {
	for _, opt := range opts {
		rdr = opt(rdr)
	}

	return rdr
}
