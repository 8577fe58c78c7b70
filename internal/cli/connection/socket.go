// Package connection talks to the host's local management socket.
package connection

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/yndnr/rosiels-go/internal/server/localserver"
)

// ErrHostNotRunning is returned when the socket cannot be reached.
var ErrHostNotRunning = errors.New("rosiels-host is not running")

// CommandError is a failure reported by the host.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// SocketClient provides Unix socket communication for local management.
type SocketClient struct {
	path string
	conn net.Conn
	r    *bufio.Reader
}

// NewSocketClient creates a new socket client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{path: socketPath}
}

// Path returns the socket path.
func (c *SocketClient) Path() string {
	return c.path
}

// Connect connects to the local socket.
func (c *SocketClient) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return fmt.Errorf("%w (socket %s): %v", ErrHostNotRunning, c.path, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	return nil
}

// Close closes the socket connection.
func (c *SocketClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Execute sends one command and returns the raw response.
func (c *SocketClient) Execute(ctx context.Context, req localserver.Request) (localserver.Response, error) {
	if c.conn == nil {
		if err := c.Connect(ctx); err != nil {
			return localserver.Response{}, err
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	line, err := json.Marshal(req)
	if err != nil {
		return localserver.Response{}, err
	}
	if _, err := c.conn.Write(append(line, '\n')); err != nil {
		return localserver.Response{}, fmt.Errorf("send %s: %w", req.Command, err)
	}

	raw, err := c.r.ReadBytes('\n')
	if err != nil {
		return localserver.Response{}, fmt.Errorf("read %s response: %w", req.Command, err)
	}
	var resp localserver.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return localserver.Response{}, fmt.Errorf("decode %s response: %w", req.Command, err)
	}
	return resp, nil
}

// Call executes a command and decodes its data into out. A host-side
// failure is returned as *CommandError.
func (c *SocketClient) Call(ctx context.Context, command string, args map[string]string, out any) error {
	resp, err := c.Execute(ctx, localserver.Request{Command: command, Args: args})
	if err != nil {
		return err
	}
	if !resp.OK {
		return &CommandError{Command: command, Message: resp.Error}
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Data, out)
}
