package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/amp-labs/purchase-validator/logger"
	"github.com/google/uuid"
)

// CorrelationHeader carries the id that ties the request and response log
// entries together. It's also sent to the validation service.
const CorrelationHeader = "X-Correlation-Id"

// NewLoggingTransport wraps rt (http.DefaultTransport if nil) so every request,
// response and transport error is logged with a shared uuid v7 correlation id.
// Bodies are never logged: they carry store receipts.
func NewLoggingTransport(ctx context.Context, rt http.RoundTripper) http.RoundTripper { //nolint:ireturn
	if rt == nil {
		rt = http.DefaultTransport
	}

	return &loggingTransport{
		ctx:       ctx,
		transport: rt,
	}
}

type loggingTransport struct {
	ctx       context.Context //nolint:containedctx
	transport http.RoundTripper
}

var _ http.RoundTripper = (*loggingTransport)(nil)

func (l *loggingTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	uuid7, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("error generating UUID: %w", err)
	}

	correlationID := uuid7.String()

	// RoundTrippers must not modify the caller's request.
	request = request.Clone(request.Context())
	request.Header.Set(CorrelationHeader, correlationID)

	log := l.logger(request.Context()).With(
		"correlation_id", correlationID,
		"method", request.Method,
		"url", request.URL.Redacted())

	log.Debug("validation request")

	start := time.Now()

	response, err := l.transport.RoundTrip(request)
	if err != nil {
		log.Error("validation request failed", "error", err, "elapsed", time.Since(start))

		return response, err
	}

	log.Debug("validation response",
		"status", response.StatusCode,
		"elapsed", time.Since(start))

	return response, nil
}

// logger prefers the request's context (it carries batch values) over the one
// the transport was built with.
func (l *loggingTransport) logger(reqCtx context.Context) *slog.Logger {
	if reqCtx != nil && reqCtx != context.Background() {
		return logger.Get(reqCtx)
	}

	return logger.Get(l.ctx)
}
