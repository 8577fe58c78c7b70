package lsp

import (
	"encoding/json"
	"net/url"
	"path/filepath"
)

// LSP method names used by the host.
const (
	MethodInitialize             = "initialize"
	MethodInitialized            = "initialized"
	MethodShutdown               = "shutdown"
	MethodExit                   = "exit"
	MethodDidChangeConfiguration = "workspace/didChangeConfiguration"
	MethodWorkspaceConfiguration = "workspace/configuration"
	MethodWorkspaceFolders       = "workspace/workspaceFolders"
	MethodRegisterCapability     = "client/registerCapability"
	MethodUnregisterCapability   = "client/unregisterCapability"
	MethodLogMessage             = "window/logMessage"
	MethodShowMessage            = "window/showMessage"
)

// Configuration sections the worker asks for when reading the token.
const (
	SectionDotted = "codiga.api.token"
	SectionFlat   = "codigaApiToken"
)

// Settings is the payload of workspace/didChangeConfiguration. The worker
// reads the flat codigaApiToken field.
type Settings struct {
	CodigaAPIToken string `json:"codigaApiToken"`
}

// DidChangeConfigurationParams wraps Settings.
type DidChangeConfigurationParams struct {
	Settings Settings `json:"settings"`
}

// ClientInfo identifies the host to the worker.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerInfo identifies the worker.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// WorkspaceFolder is a project root.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type dynamicRegistration struct {
	DynamicRegistration bool `json:"dynamicRegistration"`
}

type workspaceClientCapabilities struct {
	ApplyEdit              bool                `json:"applyEdit"`
	Configuration          bool                `json:"configuration"`
	WorkspaceFolders       bool                `json:"workspaceFolders"`
	DidChangeConfiguration dynamicRegistration `json:"didChangeConfiguration"`
}

type codeActionKind struct {
	ValueSet []string `json:"valueSet"`
}

type codeActionLiteralSupport struct {
	CodeActionKind codeActionKind `json:"codeActionKind"`
}

type codeActionClientCapabilities struct {
	CodeActionLiteralSupport codeActionLiteralSupport `json:"codeActionLiteralSupport"`
}

type textDocumentClientCapabilities struct {
	CodeAction codeActionClientCapabilities `json:"codeAction"`
}

// ClientCapabilities is the subset of LSP client capabilities the host
// advertises.
type ClientCapabilities struct {
	Workspace    workspaceClientCapabilities    `json:"workspace"`
	TextDocument textDocumentClientCapabilities `json:"textDocument"`
}

func hostCapabilities() ClientCapabilities {
	return ClientCapabilities{
		Workspace: workspaceClientCapabilities{
			ApplyEdit:              true,
			Configuration:          true,
			WorkspaceFolders:       true,
			DidChangeConfiguration: dynamicRegistration{DynamicRegistration: true},
		},
		TextDocument: textDocumentClientCapabilities{
			CodeAction: codeActionClientCapabilities{
				CodeActionLiteralSupport: codeActionLiteralSupport{
					CodeActionKind: codeActionKind{ValueSet: []string{"quickfix"}},
				},
			},
		},
	}
}

// InitializeParams is sent with the initialize request.
type InitializeParams struct {
	ProcessID        int                `json:"processId"`
	ClientInfo       ClientInfo         `json:"clientInfo"`
	RootURI          string             `json:"rootUri"`
	Capabilities     ClientCapabilities `json:"capabilities"`
	WorkspaceFolders []WorkspaceFolder  `json:"workspaceFolders"`
}

// InitializeResult is the worker's answer to initialize.
type InitializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
	ServerInfo   *ServerInfo     `json:"serverInfo,omitempty"`
}

// ConfigurationItem is one entry of a workspace/configuration request.
type ConfigurationItem struct {
	ScopeURI string `json:"scopeUri,omitempty"`
	Section  string `json:"section,omitempty"`
}

// ConfigurationParams is the workspace/configuration request payload.
type ConfigurationParams struct {
	Items []ConfigurationItem `json:"items"`
}

// MessageType is the severity of window/logMessage and window/showMessage.
type MessageType int

const (
	MessageError   MessageType = 1
	MessageWarning MessageType = 2
	MessageInfo    MessageType = 3
	MessageLog     MessageType = 4
)

// LogMessageParams is the payload of window/logMessage and window/showMessage.
type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// FileURI converts a file system path to a file:// URI.
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
