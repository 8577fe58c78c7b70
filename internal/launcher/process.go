package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrProcessExited is returned by writes after the worker has exited.
var ErrProcessExited = errors.New("launcher: process exited")

// Process is a running worker. Reads come from its stdout and writes go to
// its stdin.
type Process struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      *os.File
	stopTimeout time.Duration
	logger      *slog.Logger

	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

func startProcess(spec Spec, stopTimeout time.Duration, logger *slog.Logger) (*Process, error) {
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("launcher: stdin pipe: %w", err)
	}

	// Stdout and stderr use os.Pipe so that Wait does not close the read
	// ends while the JSON-RPC reader still owns them.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("launcher: stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("launcher: stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("launcher: start %s: %w", spec.Command[0], err)
	}
	stdoutW.Close()
	stderrW.Close()

	p := &Process{
		cmd:         cmd,
		stdin:       stdin,
		stdout:      stdoutR,
		stopTimeout: stopTimeout,
		logger:      logger.With("pid", cmd.Process.Pid),
		done:        make(chan struct{}),
	}

	go p.drainStderr(stderrR)
	go p.monitorExit()

	p.logger.Info("language server started", "command", spec.Command[0])
	return p, nil
}

// monitorExit is the only caller of cmd.Wait.
func (p *Process) monitorExit() {
	p.waitErr = p.cmd.Wait()
	if p.waitErr != nil {
		p.logger.Warn("language server exited", "error", p.waitErr)
	} else {
		p.logger.Info("language server exited")
	}
	close(p.done)
}

func (p *Process) drainStderr(r io.ReadCloser) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.logger.Debug("language server stderr", "line", scanner.Text())
	}
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Read reads from the worker's stdout.
func (p *Process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

// Write writes to the worker's stdin.
func (p *Process) Write(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, ErrProcessExited
	default:
	}
	return p.stdin.Write(b)
}

// Close closes the worker's stdin and returns without waiting. Callers
// reap the process with Stop.
func (p *Process) Close() error {
	return p.stdin.Close()
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error once Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// Stop closes stdin and waits for the process to exit. After StopTimeout,
// or when ctx is done, the process is killed. Stop is idempotent.
func (p *Process) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stdin.Close()

		timer := time.NewTimer(p.stopTimeout)
		defer timer.Stop()

		select {
		case <-p.done:
		case <-timer.C:
			p.kill("stop timeout")
		case <-ctx.Done():
			p.kill("context done")
		}
		<-p.done
		p.stopErr = p.stdout.Close()
	})
	return p.stopErr
}

func (p *Process) kill(reason string) {
	p.logger.Debug("killing language server", "reason", reason)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("kill failed", "error", err)
	}
}
