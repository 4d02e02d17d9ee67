// Package shutdown runs registered cleanup hooks when the process is asked to stop.
//
// Hooks drain work that would otherwise be lost: queued validation requests,
// buffered spans and log records. They run in registration order, while the
// context returned by SetupHandler is still alive.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"slices"
	"sync"
	"syscall"

	"github.com/amp-labs/purchase-validator/errors"
	"github.com/amp-labs/purchase-validator/logger"
)

// Hook is a cleanup function.
type Hook func(ctx context.Context)

type namedHook struct {
	id   uint64
	name string
	fn   Hook
}

// Registry holds hooks until Run is called.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	hooks  []namedHook
}

// BeforeShutdown registers a hook under a name used in logs. The returned
// function unregisters it and may be called any number of times.
func (r *Registry) BeforeShutdown(name string, fn Hook) (remove func()) {
	if fn == nil {
		return func() {}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID

	r.hooks = append(r.hooks, namedHook{id: id, name: name, fn: fn})

	return func() { r.remove(id) }
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = slices.DeleteFunc(r.hooks, func(h namedHook) bool {
		return h.id == id
	})
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.hooks)
}

// Run calls every hook once and forgets them. A panicking hook is logged and
// the remaining hooks still run.
func (r *Registry) Run(ctx context.Context) {
	r.mu.Lock()
	hooks := r.hooks
	r.hooks = nil
	r.mu.Unlock()

	for _, h := range hooks {
		runHook(ctx, h)
	}
}

func runHook(ctx context.Context, h namedHook) {
	log := logger.Get(ctx).With("hook", h.name)

	defer func() {
		if r := recover(); r != nil {
			log.Error("shutdown hook panicked", "error", errors.FromPanic(r, debug.Stack()))
		}
	}()

	log.Debug("running shutdown hook")
	h.fn(ctx)
}

var (
	defaultRegistry = &Registry{}             //nolint:gochecknoglobals
	trigger         = make(chan os.Signal, 1) //nolint:gochecknoglobals
	handlerOnce     sync.Once                 //nolint:gochecknoglobals
)

// BeforeShutdown registers a hook with the process-wide registry and returns
// the function that unregisters it.
func BeforeShutdown(name string, fn Hook) (remove func()) {
	return defaultRegistry.BeforeShutdown(name, fn)
}

// Registered returns how many hooks the process-wide registry holds.
func Registered() int {
	return defaultRegistry.Len()
}

// Shutdown starts the shutdown sequence as if SIGTERM had been received.
// It does nothing when SetupHandler hasn't been called.
func Shutdown() {
	select {
	case trigger <- syscall.SIGTERM:
	default:
	}
}

// SetupHandler listens for SIGINT and SIGTERM. On the first one (or on
// Shutdown) it runs the registered hooks and then cancels the returned
// context. Only the first call installs a handler; later calls return a
// context derived from ctx that is never canceled by a signal.
func SetupHandler(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	handlerOnce.Do(func() {
		signal.Notify(trigger, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			defer cancel()

			select {
			case sig := <-trigger:
				signal.Stop(trigger)
				logger.Get(ctx).Warn("Received "+sig.String()+", shutting down...", "hooks", Registered())
				defaultRegistry.Run(ctx)
			case <-ctx.Done():
				signal.Stop(trigger)
			}
		}()
	})

	return ctx
}
