package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amp-labs/purchase-validator/config"
	"github.com/amp-labs/purchase-validator/logger"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EnvOverrides(t *testing.T) {
	t.Parallel()

	ctx := config.WithValues(t.Context(), map[string]string{
		"HTTP_TRANSPORT_MAX_IDLE_CONNS":    "7",
		"HTTP_TRANSPORT_IDLE_CONN_TIMEOUT": "5s",
	})

	tr := New(ctx, DisableConnectionPooling, InsecureTLS)

	assert.Equal(t, 7, tr.MaxIdleConns)
	assert.Equal(t, 5*time.Second, tr.IdleConnTimeout)
	assert.True(t, tr.DisableKeepAlives)
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestGet_ReusesInstances(t *testing.T) {
	t.Parallel()

	first := Get(t.Context(), EnableDNSCache)
	second := Get(t.Context(), EnableDNSCache)
	other := Get(t.Context())

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
}

func TestGet_ContextOverride(t *testing.T) {
	t.Parallel()

	custom := &http.Transport{}

	assert.Same(t, custom, Get(WithTransport(t.Context(), custom), EnableDNSCache))
}

func TestDNSCacheDialer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := &http.Client{Transport: New(t.Context(), EnableDNSCache)}

	rsp, err := client.Get(server.URL)
	require.NoError(t, err)

	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestRefreshDNSCache_StopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})

	go func() {
		defer close(done)

		RefreshDNSCache(ctx, time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("refresher still running after cancel")
	}
}

func TestDecompressor_Gzip(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer

		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(`{"ok":true}`))
		_ = gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	client := &http.Client{Transport: NewDecompressor(New(t.Context()))}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	// Setting it explicitly stops net/http from decoding on its own.
	req.Header.Set("Accept-Encoding", "gzip")

	rsp, err := client.Do(req)
	require.NoError(t, err)

	body, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)
	require.NoError(t, rsp.Body.Close())

	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Empty(t, rsp.Header.Get("Content-Encoding"))
}

func TestDecompressor_PassThrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("plain"))
	}))
	defer server.Close()

	client := &http.Client{Transport: NewDecompressor(nil)}

	rsp, err := client.Get(server.URL)
	require.NoError(t, err)

	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(body))
}

func TestLoggingTransport_SetsCorrelationID(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get(CorrelationHeader)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx := logger.WithLogger(t.Context(), slogt.New(t))
	client := NewClient(ctx, time.Second)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL, nil)
	require.NoError(t, err)

	rsp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, rsp.Body.Close())

	assert.Equal(t, http.StatusNoContent, rsp.StatusCode)
	assert.Len(t, <-seen, 36)
	assert.Empty(t, req.Header.Get(CorrelationHeader), "caller's request must not be modified")
}

func TestLoggingTransport_Error(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := &http.Client{Transport: NewLoggingTransport(logger.WithLogger(t.Context(), slogt.New(t)), nil)}

	_, err := client.Get(url) //nolint:noctx
	require.Error(t, err)
}
