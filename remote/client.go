package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amp-labs/purchase-validator/transport"
)

// maxResponseBytes caps how much of a reply is read.
const maxResponseBytes = 4 << 20

var errEmptyBody = errors.New("empty response body")

// Client posts products to the validation service over HTTP.
type Client struct {
	httpClient *http.Client
}

var _ Poster = (*Client)(nil)

// NewClient builds a Client on the shared transport for opts. A zero
// timeout means each call is bounded only by its context.
func NewClient(ctx context.Context, timeout time.Duration, opts ...transport.Option) *Client {
	return &Client{
		httpClient: transport.NewClient(ctx, timeout, opts...),
	}
}

// NewClientWith wraps an existing http.Client.
func NewClientWith(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{httpClient: httpClient}
}

// Post sends body as JSON to endpoint. Every failure is a *TransportError.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &TransportError{Message: "cannot encode request: " + err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")

	rsp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}

	defer func() {
		_ = rsp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(rsp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Status: rsp.StatusCode, Message: err.Error(), Err: err}
	}

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		return nil, &TransportError{
			Status:  rsp.StatusCode,
			Message: statusMessage(rsp),
			Body:    toUTF8(raw, rsp.Header.Get("Content-Type")),
		}
	}

	return decodeResponse(rsp.StatusCode, raw, rsp.Header.Get("Content-Type"))
}

func decodeResponse(status int, raw []byte, contentType string) (*Response, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &TransportError{Status: status, Message: errEmptyBody.Error(), Err: errEmptyBody}
	}

	out := &Response{}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, &TransportError{
			Status:  status,
			Message: fmt.Sprintf("invalid response body: %v", err),
			Body:    toUTF8(raw, contentType),
			Err:     err,
		}
	}

	return out, nil
}

// statusMessage returns the reason phrase the server sent, or the standard one.
func statusMessage(rsp *http.Response) string {
	if _, reason, found := strings.Cut(rsp.Status, " "); found && reason != "" {
		return reason
	}

	if text := http.StatusText(rsp.StatusCode); text != "" {
		return text
	}

	return "Unknown Status"
}
