package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StdioFlag tells the worker to speak JSON-RPC over stdin/stdout.
const StdioFlag = "--stdio"

var (
	// ErrRuntimeMissing means the runtime environment variable is not set.
	ErrRuntimeMissing = errors.New("launcher: runtime location not configured")

	// ErrResourceUnresolved means the entry script could not be located.
	ErrResourceUnresolved = errors.New("launcher: entry resource unresolved")
)

// Config configures the launcher.
type Config struct {
	// RuntimeEnv names the environment variable holding the runtime directory.
	RuntimeEnv string

	// RuntimeName is the runtime executable name, e.g. "node".
	RuntimeName string

	// EntryResource is the entry script, resolved through a ResourceResolver.
	EntryResource string

	// StopTimeout bounds the graceful part of Process.Stop.
	StopTimeout time.Duration
}

// Spec is a fully resolved process invocation.
type Spec struct {
	Command []string `json:"command" yaml:"command"`
	Dir     string   `json:"dir" yaml:"dir"`
}

// ResourceResolver maps a resource path bundled with the installation to a
// file system path.
type ResourceResolver interface {
	Resolve(resource string) (string, error)
}

// Diagnostics receives user-visible notices about soft failures.
type Diagnostics interface {
	Diagnostic(msg string)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(msg string)

// Diagnostic implements Diagnostics.
func (f DiagnosticsFunc) Diagnostic(msg string) {
	f(msg)
}

// Option customizes a Launcher.
type Option func(*Launcher)

// WithGetenv replaces os.Getenv.
func WithGetenv(fn func(string) string) Option {
	return func(l *Launcher) {
		l.getenv = fn
	}
}

// WithGetwd replaces os.Getwd.
func WithGetwd(fn func() (string, error)) Option {
	return func(l *Launcher) {
		l.getwd = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// Launcher starts worker processes from a precomputed Spec.
type Launcher struct {
	cfg    Config
	getenv func(string) string
	getwd  func() (string, error)
	logger *slog.Logger

	spec Spec
	ok   bool
	err  error
}

// New computes the process spec. It never fails: when the spec cannot be
// built the launcher is disabled and Err reports why. A missing runtime
// location is reported to diag exactly once.
func New(cfg Config, resolver ResourceResolver, diag Diagnostics, opts ...Option) *Launcher {
	l := &Launcher{
		cfg:    cfg,
		getenv: os.Getenv,
		getwd:  os.Getwd,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cfg.StopTimeout <= 0 {
		l.cfg.StopTimeout = 5 * time.Second
	}

	l.spec, l.err = l.build(resolver)
	l.ok = l.err == nil

	switch {
	case errors.Is(l.err, ErrRuntimeMissing):
		if diag != nil {
			diag.Diagnostic(fmt.Sprintf(
				"Rosie language server disabled: environment variable %s is not set. "+
					"Set it to the directory containing the %s executable.",
				cfg.RuntimeEnv, cfg.RuntimeName))
		}
	case l.err != nil:
		l.logger.Error("cannot build language server command", "error", l.err)
	default:
		l.logger.Debug("language server command resolved",
			"command", strings.Join(l.spec.Command, " "),
			"dir", l.spec.Dir)
	}

	return l
}

func (l *Launcher) build(resolver ResourceResolver) (Spec, error) {
	location := strings.TrimSpace(l.getenv(l.cfg.RuntimeEnv))
	if location == "" {
		return Spec{}, ErrRuntimeMissing
	}

	if resolver == nil {
		return Spec{}, fmt.Errorf("%w: no resolver", ErrResourceUnresolved)
	}
	entry, err := resolver.Resolve(l.cfg.EntryResource)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %s: %w", ErrResourceUnresolved, l.cfg.EntryResource, err)
	}
	entry, err = filepath.Abs(entry)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %s: %w", ErrResourceUnresolved, l.cfg.EntryResource, err)
	}

	dir, err := l.getwd()
	if err != nil {
		return Spec{}, fmt.Errorf("launcher: working directory: %w", err)
	}

	return Spec{
		Command: []string{RuntimePath(location, l.cfg.RuntimeName), entry, StdioFlag},
		Dir:     dir,
	}, nil
}

// RuntimePath joins a runtime location and executable name. A location that
// already names the executable is returned cleaned but otherwise unchanged.
func RuntimePath(location, name string) string {
	clean := filepath.Clean(location)
	if filepath.Base(clean) == name {
		return clean
	}
	return filepath.Join(clean, name)
}

// Spec returns a copy of the resolved spec and whether it exists.
func (l *Launcher) Spec() (Spec, bool) {
	if !l.ok {
		return Spec{}, false
	}
	return Spec{
		Command: append([]string(nil), l.spec.Command...),
		Dir:     l.spec.Dir,
	}, true
}

// Enabled reports whether a spec was built.
func (l *Launcher) Enabled() bool {
	return l.ok
}

// Err returns why the launcher is disabled, or nil.
func (l *Launcher) Err() error {
	return l.err
}

// Start launches one worker process. The process outlives ctx; ctx only
// guards the start itself.
func (l *Launcher) Start(ctx context.Context) (*Process, error) {
	if !l.ok {
		return nil, l.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return startProcess(l.spec, l.cfg.StopTimeout, l.logger)
}
