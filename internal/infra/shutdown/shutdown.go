// Package shutdown coordinates graceful host shutdown.
//
// Hooks run in reverse registration order once a termination signal arrives
// or the trigger context is cancelled, bounded by a single timeout.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Hook releases one resource during shutdown.
type Hook struct {
	Name string
	Fn   func(context.Context) error
}

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	hooks   []Hook
	mu      sync.Mutex
	done    chan struct{}
	once    sync.Once
	signals []os.Signal
}

// NewHandler creates a new shutdown handler.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		hooks:   make([]Hook, 0),
		done:    make(chan struct{}),
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, Hook{Name: name, Fn: fn})
}

// Wait blocks until SIGINT/SIGTERM or until trigger is cancelled, then runs
// the hooks. All hook errors are joined.
func (h *Handler) Wait(trigger context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.signals...)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-trigger.Done():
	}

	return h.Shutdown()
}

// Shutdown runs the hooks immediately. Only the first call runs them; later
// calls wait for completion and return nil.
func (h *Handler) Shutdown() error {
	var err error
	ran := false
	h.once.Do(func() {
		ran = true
		err = h.run()
		close(h.done)
	})
	if !ran {
		<-h.done
	}
	return err
}

func (h *Handler) run() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i].Fn(ctx); err != nil {
			errs = append(errs, &HookError{Name: hooks[i].Name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// HookError records which hook failed.
type HookError struct {
	Name string
	Err  error
}

func (e *HookError) Error() string {
	return "shutdown " + e.Name + ": " + e.Err.Error()
}

func (e *HookError) Unwrap() error {
	return e.Err
}
