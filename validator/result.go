package validator

import (
	"github.com/amp-labs/purchase-validator/errors"
	"github.com/amp-labs/purchase-validator/remote"
)

// Result is the outcome delivered to a Callback.
//
//   - Ok: the product is valid. Data is the product itself on the bypass
//     path, or whatever the validation service put in "data".
//   - Rejected: the service (or a custom handler) said no. Data is the
//     refusal payload, passed through untouched.
//   - Failed: no verdict could be obtained. Data is a message like
//     "Error 500: Internal Server Error" and Err holds the cause.
type Result struct {
	OK   bool
	Data any
	Err  error
}

// Callback receives exactly one Result per Validate call.
type Callback func(Result)

// Ok builds a successful Result.
func Ok(data any) Result {
	return Result{OK: true, Data: data}
}

// Rejected builds a negative verdict.
func Rejected(data any) Result {
	return Result{Data: data}
}

// Failed builds the Result for a call that produced no verdict.
func Failed(err error) Result {
	if err == nil {
		err = errors.ErrNoVerdict
	}

	return Result{Data: remote.AsTransportError(err).Error(), Err: err}
}

// IsFailure reports whether the result comes from a transport failure rather
// than from a verdict.
func (r Result) IsFailure() bool {
	return r.Err != nil
}

// Message returns a human-readable reason for a negative result: the failure
// message, or the "message" or "code" field of a rejection payload.
// It's empty for successful results.
func (r Result) Message() string {
	if r.OK {
		return ""
	}

	switch data := r.Data.(type) {
	case string:
		return data
	case map[string]any:
		for _, key := range []string{"message", "code"} {
			if s, ok := data[key].(string); ok && s != "" {
				return s
			}
		}
	}

	return ""
}
