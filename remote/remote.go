// Package remote talks to the validation service.
//
// Wire contract: the request body is the JSON-encoded product; a 2xx response
// body is {"ok": bool, "data": {...}}. A validation refusal is a 2xx with
// "ok": false and the reason in "data" (usually with a "code"); anything that
// isn't a readable 2xx reply is a *TransportError.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// Poster sends one validation call. The dispatcher depends only on this
// interface; Client is the HTTP implementation.
type Poster interface {
	Post(ctx context.Context, endpoint string, body any) (*Response, error)
}

// PosterFunc adapts a function to the Poster interface.
type PosterFunc func(ctx context.Context, endpoint string, body any) (*Response, error)

func (f PosterFunc) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return f(ctx, endpoint, body)
}

// Response is the decoded reply of the validation service. A reply without
// an "ok" field reads as not ok; Data is whatever "data" held, untouched.
type Response struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// TransportError reports a call that didn't produce a usable reply:
// a non-2xx status, a network failure (Status 0) or an unreadable body.
type TransportError struct {
	Status  int
	Message string

	// Body is the response body as UTF-8 text, if there was one.
	Body string

	// Err is the underlying error for network and decoding failures.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.Status, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsTransportError returns err as a *TransportError, wrapping errors that
// didn't come from a Poster as a Status 0 failure. A nil err yields nil.
func AsTransportError(err error) *TransportError {
	if err == nil {
		return nil
	}

	var terr *TransportError
	if errors.As(err, &terr) {
		return terr
	}

	return &TransportError{Message: err.Error(), Err: err}
}
