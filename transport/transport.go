// Package transport builds the http.RoundTripper used for outbound validation calls.
//
// Transports are tuned through environment variables:
//
//   - HTTP_TRANSPORT_MAX_IDLE_CONNS (default: 100)
//   - HTTP_TRANSPORT_MAX_IDLE_CONNS_PER_HOST (default: 16)
//   - HTTP_TRANSPORT_IDLE_CONN_TIMEOUT (default: 90s)
//   - HTTP_TRANSPORT_TLS_HANDSHAKE_TIMEOUT (default: 10s)
//   - HTTP_TRANSPORT_EXPECT_CONTINUE_TIMEOUT (default: 1s)
//   - HTTP_TRANSPORT_DIAL_TIMEOUT (default: 30s)
//   - HTTP_TRANSPORT_DIAL_KEEPALIVE (default: 30s)
//
// Every batch of coalesced requests goes to the same validation endpoint, so the
// pooled transports returned by Get are shared process-wide.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/amp-labs/purchase-validator/config"
)

// New returns a new http.Transport. Prefer Get, which reuses instances.
func New(ctx context.Context, opts ...Option) *http.Transport {
	return create(ctx, readOptions(opts...))
}

func create(ctx context.Context, cfg options) *http.Transport {
	maxIdleConns := config.Int(ctx, "HTTP_TRANSPORT_MAX_IDLE_CONNS",
		config.Default(defaultMaxIdleConns)).ValueOrElse(defaultMaxIdleConns)

	maxIdleConnsPerHost := config.Int(ctx, "HTTP_TRANSPORT_MAX_IDLE_CONNS_PER_HOST",
		config.Default(defaultMaxIdleConnsPerHost)).ValueOrElse(defaultMaxIdleConnsPerHost)

	idleConnTimeout := config.Duration(ctx, "HTTP_TRANSPORT_IDLE_CONN_TIMEOUT",
		config.Default(defaultIdleConnTimeout)).ValueOrElse(defaultIdleConnTimeout)

	tlsHandshakeTimeout := config.Duration(ctx, "HTTP_TRANSPORT_TLS_HANDSHAKE_TIMEOUT",
		config.Default(defaultTLSHandshakeTimeout)).ValueOrElse(defaultTLSHandshakeTimeout)

	expectContinueTimeout := config.Duration(ctx, "HTTP_TRANSPORT_EXPECT_CONTINUE_TIMEOUT",
		config.Default(defaultExpectContinueTimeout)).ValueOrElse(defaultExpectContinueTimeout)

	dialTimeout := config.Duration(ctx, "HTTP_TRANSPORT_DIAL_TIMEOUT",
		config.Default(defaultDialTimeout)).ValueOrElse(defaultDialTimeout)

	keepAlive := config.Duration(ctx, "HTTP_TRANSPORT_DIAL_KEEPALIVE",
		config.Default(defaultKeepAlive)).ValueOrElse(defaultKeepAlive)

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ExpectContinueTimeout: expectContinueTimeout,
	}

	if cfg.DisableConnectionPooling {
		transport.DisableKeepAlives = true
	}

	if cfg.EnableDNSCache {
		useDNSCacheDialer(transport, dialTimeout, keepAlive)
	}

	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec
		}
	}

	return transport
}

var (
	instancesMu sync.Mutex                             //nolint:gochecknoglobals
	instances   = make(map[options]*http.Transport, 8) //nolint:gochecknoglobals
)

// Get returns the transport attached to ctx with WithTransport, or else the
// shared instance for the given options.
func Get(ctx context.Context, opts ...Option) http.RoundTripper { //nolint:ireturn
	if rt := getTransportFromContext(ctx); rt != nil {
		return rt
	}

	cfg := readOptions(opts...)

	instancesMu.Lock()
	defer instancesMu.Unlock()

	if tr, ok := instances[cfg]; ok {
		return tr
	}

	tr := create(ctx, cfg)
	instances[cfg] = tr

	return tr
}

// NewClient returns an http.Client that decompresses and logs every exchange
// on top of Get(ctx, opts...). A zero timeout means no client-side timeout.
func NewClient(ctx context.Context, timeout time.Duration, opts ...Option) *http.Client {
	return &http.Client{
		Transport: NewLoggingTransport(ctx, NewDecompressor(Get(ctx, opts...))),
		Timeout:   timeout,
	}
}
