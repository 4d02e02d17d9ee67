package validator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/purchase-validator/debounce"
	"github.com/amp-labs/purchase-validator/logger"
	"github.com/amp-labs/purchase-validator/remote"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

// manualClock hands out timers that fire only when the test says so.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true

	return wasActive
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) debounce.Timer { //nolint:ireturn
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &manualTimer{f: f}
	c.timers = append(c.timers, timer)

	return timer
}

// fireLatest runs the most recently armed timer, the only one a debounce
// scheduler keeps active.
func (c *manualClock) fireLatest(t *testing.T) {
	t.Helper()

	c.mu.Lock()
	require.NotEmpty(t, c.timers, "no timer armed")
	timer := c.timers[len(c.timers)-1]
	c.mu.Unlock()

	timer.f()
}

type postCall struct {
	endpoint string
	body     map[string]any
}

// stubPoster records every post and answers with respond.
type stubPoster struct {
	mu      sync.Mutex
	calls   []postCall
	respond func(body map[string]any) (*remote.Response, error)
}

func (s *stubPoster) Post(_ context.Context, endpoint string, body any) (*remote.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls = append(s.calls, postCall{endpoint: endpoint, body: decoded})
	s.mu.Unlock()

	if s.respond == nil {
		return &remote.Response{OK: true, Data: map[string]any{"id": decoded["id"]}}, nil
	}

	return s.respond(decoded)
}

func (s *stubPoster) get() []postCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]postCall(nil), s.calls...)
}

// collector gathers the results handed to its callbacks.
type collector struct {
	mu      sync.Mutex
	results map[string][]Result
}

func newCollector() *collector {
	return &collector{results: make(map[string][]Result)}
}

func (c *collector) callback(name string) Callback {
	return func(r Result) {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.results[name] = append(c.results[name], r)
	}
}

func (c *collector) get(name string) []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Result(nil), c.results[name]...)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, rs := range c.results {
		total += len(rs)
	}

	return total
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	return logger.WithLogger(t.Context(), slogt.New(t))
}

// newTestService builds a remote-endpoint service on a manual clock.
func newTestService(t *testing.T, poster remote.Poster, opts ...Option) (*Service, *manualClock) {
	t.Helper()

	clock := &manualClock{}

	base := []Option{
		WithName(t.Name()),
		WithContext(testContext(t)),
		WithValidator(RemoteEndpoint("https://validator.test/v1/validate")),
		WithPoster(poster),
		WithClock(clock),
		WithWorkers(4),
	}

	svc := New(append(base, opts...)...)
	t.Cleanup(svc.Close)

	return svc, clock
}
