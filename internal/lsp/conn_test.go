package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

type staticToken struct {
	token string
	err   error
}

func (s staticToken) APIToken() (string, error) {
	return s.token, s.err
}

// fakeServer is the worker side of a net.Pipe.
type fakeServer struct {
	rpc *jsonrpc2.Conn

	mu       sync.Mutex
	init     *InitializeParams
	settings chan Settings
	methods  []string
}

func newFakeServer(t *testing.T, rwc net.Conn) *fakeServer {
	t.Helper()
	s := &fakeServer{settings: make(chan Settings, 8)}
	handler := jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		s.mu.Lock()
		s.methods = append(s.methods, req.Method)
		s.mu.Unlock()

		switch req.Method {
		case MethodInitialize:
			var p InitializeParams
			if err := json.Unmarshal(*req.Params, &p); err != nil {
				return nil, err
			}
			s.mu.Lock()
			s.init = &p
			s.mu.Unlock()
			return InitializeResult{
				Capabilities: json.RawMessage(`{"codeActionProvider":true}`),
				ServerInfo:   &ServerInfo{Name: "rosie"},
			}, nil
		case MethodDidChangeConfiguration:
			var p DidChangeConfigurationParams
			if err := json.Unmarshal(*req.Params, &p); err != nil {
				return nil, err
			}
			s.settings <- p.Settings
			return nil, nil
		case MethodShutdown:
			return nil, nil
		}
		return nil, nil
	})
	s.rpc = jsonrpc2.NewConn(context.Background(),
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}), handler)
	t.Cleanup(func() { s.rpc.Close() })
	return s
}

func dialPipe(t *testing.T, source SettingsSource) (*Conn, *fakeServer) {
	t.Helper()
	client, server := net.Pipe()
	fs := newFakeServer(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, client, DialOptions{
		Root:          "/home/u/proj",
		ClientName:    "rosiels",
		ClientVersion: "test",
		Settings:      source,
		Logger:        slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, fs
}

func TestDial_Handshake(t *testing.T) {
	conn, fs := dialPipe(t, staticToken{token: "abc123"})

	if conn.ServerName() != "rosie" {
		t.Errorf("ServerName() = %q, want rosie", conn.ServerName())
	}

	fs.mu.Lock()
	init := fs.init
	fs.mu.Unlock()
	if init == nil {
		t.Fatal("server did not receive initialize")
	}
	if init.RootURI != "file:///home/u/proj" {
		t.Errorf("rootUri = %q", init.RootURI)
	}
	if init.ClientInfo.Name != "rosiels" {
		t.Errorf("clientInfo.name = %q", init.ClientInfo.Name)
	}
	ws := init.Capabilities.Workspace
	if !ws.Configuration || !ws.WorkspaceFolders || !ws.ApplyEdit || !ws.DidChangeConfiguration.DynamicRegistration {
		t.Errorf("workspace capabilities = %+v", ws)
	}
	if len(init.WorkspaceFolders) != 1 || init.WorkspaceFolders[0].Name != "proj" {
		t.Errorf("workspaceFolders = %+v", init.WorkspaceFolders)
	}

	// initialized is a notification; wait for it to be handled.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fs.mu.Lock()
		n := len(fs.methods)
		fs.mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	fs.mu.Lock()
	methods := strings.Join(fs.methods, ",")
	fs.mu.Unlock()
	if methods != "initialize,initialized" {
		t.Errorf("server saw %q, want initialize,initialized", methods)
	}
}

func TestConn_DidChangeConfiguration(t *testing.T) {
	conn, fs := dialPipe(t, nil)

	if err := conn.DidChangeConfiguration(context.Background(), Settings{CodigaAPIToken: "abc123"}); err != nil {
		t.Fatalf("DidChangeConfiguration() error = %v", err)
	}

	select {
	case s := <-fs.settings:
		if s.CodigaAPIToken != "abc123" {
			t.Errorf("codigaApiToken = %q, want abc123", s.CodigaAPIToken)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for didChangeConfiguration")
	}
}

func TestSettings_WireFormat(t *testing.T) {
	data, err := json.Marshal(DidChangeConfigurationParams{Settings: Settings{CodigaAPIToken: ""}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"settings":{"codigaApiToken":""}}` {
		t.Errorf("payload = %s", data)
	}
}

func TestConn_WorkspaceConfiguration(t *testing.T) {
	_, fs := dialPipe(t, staticToken{token: "abc123"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result []any
	err := fs.rpc.Call(ctx, MethodWorkspaceConfiguration, ConfigurationParams{Items: []ConfigurationItem{
		{Section: SectionDotted},
		{Section: SectionFlat},
		{Section: "editor.tabSize"},
	}}, &result)
	if err != nil {
		t.Fatalf("workspace/configuration error = %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("result = %v, want 3 entries", result)
	}
	if result[0] != "abc123" || result[1] != "abc123" {
		t.Errorf("token entries = %v", result[:2])
	}
	if result[2] != nil {
		t.Errorf("unknown section = %v, want null", result[2])
	}
}

func TestConn_WorkspaceConfiguration_StorageFailure(t *testing.T) {
	_, fs := dialPipe(t, staticToken{err: errors.New("locked")})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result []any
	err := fs.rpc.Call(ctx, MethodWorkspaceConfiguration, ConfigurationParams{Items: []ConfigurationItem{
		{Section: SectionFlat},
	}}, &result)

	var rpcErr *jsonrpc2.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != jsonrpc2.CodeInternalError {
		t.Errorf("error = %v, want internal error", err)
	}
	if strings.Contains(err.Error(), "locked") {
		t.Error("storage error detail should not leak to the server")
	}
}

func TestConn_ServerRequests(t *testing.T) {
	_, fs := dialPipe(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var folders []WorkspaceFolder
	if err := fs.rpc.Call(ctx, MethodWorkspaceFolders, nil, &folders); err != nil {
		t.Fatalf("workspaceFolders error = %v", err)
	}
	if len(folders) != 1 || folders[0].URI != "file:///home/u/proj" {
		t.Errorf("folders = %+v", folders)
	}

	if err := fs.rpc.Call(ctx, MethodRegisterCapability, map[string]any{"registrations": []any{}}, nil); err != nil {
		t.Errorf("registerCapability error = %v", err)
	}

	if err := fs.rpc.Notify(ctx, MethodLogMessage, LogMessageParams{Type: MessageInfo, Message: "hi"}); err != nil {
		t.Errorf("logMessage error = %v", err)
	}

	err := fs.rpc.Call(ctx, "textDocument/unknown", nil, nil)
	var rpcErr *jsonrpc2.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != jsonrpc2.CodeMethodNotFound {
		t.Errorf("unknown method error = %v, want MethodNotFound", err)
	}
}

func TestConn_ShutdownAndClose(t *testing.T) {
	conn, _ := dialPipe(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Error("Done() not closed after Close")
	}

	if err := conn.DidChangeConfiguration(ctx, Settings{}); err == nil {
		t.Error("DidChangeConfiguration() on closed conn should fail")
	}
}

func TestFileURI(t *testing.T) {
	if got := FileURI("/home/u/my proj"); got != "file:///home/u/my%20proj" {
		t.Errorf("FileURI() = %q", got)
	}
}

func TestDial_Failure(t *testing.T) {
	client, server := net.Pipe()
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dial(ctx, client, DialOptions{Root: "/tmp"}); err == nil {
		t.Error("Dial() against a closed peer should fail")
	}
}
