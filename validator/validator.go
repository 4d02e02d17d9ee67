// Package validator validates purchased products against a remote service,
// coalescing bursts of requests for the same product into a single call.
//
// A Service routes every Validate call according to its configured Validator:
//
//   - NoValidator: the callback gets Ok(product) right away.
//   - RemoteEndpoint: the request is queued; once no request has arrived for
//     the debounce delay, queued requests are grouped by product id and each
//     group is posted once. Every caller in a group gets the same Result.
//   - CustomHandler: the handler is called directly and owns the callback.
//
// An optional Preparer runs once before routing (e.g. to refresh a receipt).
package validator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/amp-labs/purchase-validator/errors"
	"github.com/amp-labs/purchase-validator/product"
)

// Kind tells which variant a Validator holds.
type Kind int

const (
	KindNone Kind = iota
	KindRemote
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRemote:
		return "remote"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Handler validates a product itself. It must call cb exactly once.
type Handler func(ctx context.Context, p *product.Product, cb Callback)

// Validator is the validation configuration: nothing, an endpoint, or a handler.
// The zero value is NoValidator.
type Validator struct {
	kind     Kind
	endpoint string
	handler  Handler
}

// NoValidator disables validation: every product is accepted.
func NoValidator() Validator {
	return Validator{}
}

// RemoteEndpoint validates by posting products to endpoint. An empty
// endpoint means no validator.
func RemoteEndpoint(endpoint string) Validator {
	if endpoint == "" {
		return NoValidator()
	}

	return Validator{kind: KindRemote, endpoint: endpoint}
}

// ParseEndpoint is RemoteEndpoint for untrusted input: raw must be an
// absolute http or https URL.
func ParseEndpoint(raw string) (Validator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NoValidator(), errors.ErrNoEndpoint
	}

	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return NoValidator(), fmt.Errorf("invalid validator endpoint %q: %w", raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return NoValidator(), fmt.Errorf("%w: unsupported scheme %q", errors.ErrNoEndpoint, u.Scheme)
	}

	return RemoteEndpoint(u.String()), nil
}

// CustomHandler delegates validation to h. A nil h means no validator.
func CustomHandler(h Handler) Validator {
	if h == nil {
		return NoValidator()
	}

	return Validator{kind: KindCustom, handler: h}
}

func (v Validator) Kind() Kind {
	return v.kind
}

// Endpoint returns the endpoint of a KindRemote validator.
func (v Validator) Endpoint() string {
	return v.endpoint
}

// Handler returns the handler of a KindCustom validator.
func (v Validator) Handler() Handler {
	return v.handler
}

func (v Validator) String() string {
	if v.kind == KindRemote {
		return "remote(" + v.endpoint + ")"
	}

	return v.kind.String()
}
