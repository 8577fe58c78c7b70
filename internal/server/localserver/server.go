// Package localserver serves the host's management commands on a Unix
// domain socket.
//
// The protocol is newline-delimited JSON: one Request per line in, one
// Response per line out. Access control is the socket file mode (0600).
// Each connection has its own token-bucket limiter.
package localserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/rosiels-go/internal/telemetry/logger"
)

// maxRequestSize bounds one request line.
const maxRequestSize = 1 << 20

// Options configures a Server.
type Options struct {
	// RateLimit is requests per second per connection. Zero disables limiting.
	RateLimit float64
	Burst     int
	Logger    logger.Logger
}

// Server represents the local management server.
type Server struct {
	path    string
	handler *Handler
	opts    Options
	logger  logger.Logger

	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new local server.
func New(socketPath string, handler *Handler, opts Options) *Server {
	l := opts.Logger
	if l == nil {
		l = logger.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		path:    socketPath,
		handler: handler,
		opts:    opts,
		logger:  l,
		conns:   make(map[net.Conn]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Listen creates the socket. A stale socket file left by a previous run is
// removed; any other existing file is an error.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("localserver: %w", err)
	}
	if info, err := os.Lstat(s.path); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return fmt.Errorf("localserver: %s exists and is not a socket", s.path)
		}
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("localserver: remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("localserver: %w", err)
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("localserver: %w", err)
	}

	s.listener = ln
	s.running.Store(true)
	s.logger.Info("local server listening", "path", s.path)
	return nil
}

// Serve accepts connections until Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("localserver: Listen not called")
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handleConnection(conn)
		}()
	}
}

// ListenAndServe starts the local server.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Shutdown stops accepting connections, interrupts idle ones and waits for
// in-flight requests to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return closeErr
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	var limiter *rate.Limiter
	if s.opts.RateLimit > 0 {
		burst := s.opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.opts.RateLimit), burst)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxRequestSize)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		if !s.running.Load() {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp Response
		var req Request
		switch {
		case limiter != nil && !limiter.Allow():
			resp = Response{Error: "rate limit exceeded"}
		case json.Unmarshal(line, &req) != nil:
			resp = Response{Error: "malformed request"}
		default:
			start := time.Now()
			resp = s.handler.Execute(s.ctx, req)
			s.logger.Debug("local command",
				"command", req.Command,
				"ok", resp.OK,
				"elapsed", time.Since(start))
		}

		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}
