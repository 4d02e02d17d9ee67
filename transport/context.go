package transport

import (
	"context"
	"net/http"
)

type contextKey string

const contextKeyTransport contextKey = "http-transport"

// WithTransport makes Get return rt for this context. Tests use it to point the
// validator at an httptest server or a stub.
func WithTransport(ctx context.Context, rt http.RoundTripper) context.Context {
	return context.WithValue(ctx, contextKeyTransport, rt)
}

func getTransportFromContext(ctx context.Context) http.RoundTripper {
	if ctx == nil {
		return nil
	}

	rt, ok := ctx.Value(contextKeyTransport).(http.RoundTripper)
	if !ok {
		return nil
	}

	return rt
}
