// Package lsp is the host side of a JSON-RPC channel to one language server.
//
// Framing is the LSP base protocol (Content-Length headers) provided by
// jsonrpc2.VSCodeObjectCodec. Dial performs the initialize handshake; after
// that the Conn answers the server-to-client requests a Rosie server sends
// and lets the host push configuration changes.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sourcegraph/jsonrpc2"
)

// SettingsSource supplies the current token when the server asks for it.
// *credential.Store satisfies it.
type SettingsSource interface {
	APIToken() (string, error)
}

// DialOptions configures Dial.
type DialOptions struct {
	// Root is the project root reported as rootUri and workspace folder.
	Root string

	ClientName    string
	ClientVersion string

	Settings SettingsSource
	Logger   *slog.Logger
}

// Conn is an initialized channel to a language server.
type Conn struct {
	rpc    *jsonrpc2.Conn
	folder WorkspaceFolder
	source SettingsSource
	logger *slog.Logger

	server *ServerInfo
}

// Dial wraps rwc and performs the initialize handshake. On failure the
// stream is closed.
func Dial(ctx context.Context, rwc io.ReadWriteCloser, opts DialOptions) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Conn{
		folder: WorkspaceFolder{URI: FileURI(opts.Root), Name: filepath.Base(opts.Root)},
		source: opts.Settings,
		logger: logger,
	}

	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	c.rpc = jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(c.handle)))

	params := InitializeParams{
		ProcessID:        os.Getpid(),
		ClientInfo:       ClientInfo{Name: opts.ClientName, Version: opts.ClientVersion},
		RootURI:          c.folder.URI,
		Capabilities:     hostCapabilities(),
		WorkspaceFolders: []WorkspaceFolder{c.folder},
	}

	var result InitializeResult
	if err := c.rpc.Call(ctx, MethodInitialize, params, &result); err != nil {
		c.rpc.Close()
		return nil, fmt.Errorf("lsp: initialize: %w", err)
	}
	c.server = result.ServerInfo

	if err := c.rpc.Notify(ctx, MethodInitialized, struct{}{}); err != nil {
		c.rpc.Close()
		return nil, fmt.Errorf("lsp: initialized: %w", err)
	}

	logger.Debug("language server initialized", "root", c.folder.URI, "server", c.ServerName())
	return c, nil
}

// ServerName returns the name the server reported, if any.
func (c *Conn) ServerName() string {
	if c.server == nil {
		return ""
	}
	return c.server.Name
}

// DidChangeConfiguration sends workspace/didChangeConfiguration. It does not
// wait for the server to act on it.
func (c *Conn) DidChangeConfiguration(ctx context.Context, settings Settings) error {
	params := DidChangeConfigurationParams{Settings: settings}
	if err := c.rpc.Notify(ctx, MethodDidChangeConfiguration, params); err != nil {
		return fmt.Errorf("lsp: %s: %w", MethodDidChangeConfiguration, err)
	}
	return nil
}

// Shutdown asks the server to shut down and exit.
func (c *Conn) Shutdown(ctx context.Context) error {
	if err := c.rpc.Call(ctx, MethodShutdown, nil, nil); err != nil {
		return fmt.Errorf("lsp: shutdown: %w", err)
	}
	if err := c.rpc.Notify(ctx, MethodExit, nil); err != nil {
		return fmt.Errorf("lsp: exit: %w", err)
	}
	return nil
}

// Close closes the channel and the underlying stream.
func (c *Conn) Close() error {
	err := c.rpc.Close()
	if errors.Is(err, jsonrpc2.ErrClosed) {
		return nil
	}
	return err
}

// Done is closed when the channel is disconnected.
func (c *Conn) Done() <-chan struct{} {
	return c.rpc.DisconnectNotify()
}

func (c *Conn) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case MethodWorkspaceConfiguration:
		return c.configuration(req)
	case MethodWorkspaceFolders:
		return []WorkspaceFolder{c.folder}, nil
	case MethodRegisterCapability, MethodUnregisterCapability:
		return nil, nil
	case MethodLogMessage, MethodShowMessage:
		c.logMessage(req)
		return nil, nil
	}

	if req.Notif {
		c.logger.Debug("ignoring server notification", "method", req.Method)
		return nil, nil
	}
	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: "method not supported: " + req.Method,
	}
}

func (c *Conn) configuration(req *jsonrpc2.Request) (any, error) {
	var params ConfigurationParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
		}
	}

	results := make([]any, len(params.Items))
	for i, item := range params.Items {
		if item.Section != SectionDotted && item.Section != SectionFlat {
			continue
		}
		if c.source == nil {
			results[i] = ""
			continue
		}
		token, err := c.source.APIToken()
		if err != nil {
			c.logger.Warn("cannot read api token for workspace/configuration", "error", err)
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "credential storage unavailable"}
		}
		results[i] = token
	}
	return results, nil
}

func (c *Conn) logMessage(req *jsonrpc2.Request) {
	var params LogMessageParams
	if req.Params == nil || json.Unmarshal(*req.Params, &params) != nil {
		return
	}

	level := slog.LevelDebug
	switch params.Type {
	case MessageError:
		level = slog.LevelError
	case MessageWarning:
		level = slog.LevelWarn
	case MessageInfo:
		level = slog.LevelInfo
	}
	c.logger.Log(context.Background(), level, "language server message",
		"method", req.Method,
		"message", params.Message)
}
