package workspace

import (
	"context"
	"time"

	"github.com/yndnr/rosiels-go/internal/lsp"
)

// shutdownGrace bounds the LSP shutdown request when stopping an instance.
const shutdownGrace = 2 * time.Second

// channel is the part of *lsp.Conn an Instance uses.
type channel interface {
	DidChangeConfiguration(ctx context.Context, settings lsp.Settings) error
	Shutdown(ctx context.Context) error
	Close() error
	Done() <-chan struct{}
}

// Instance is one running language server bound to a project.
type Instance struct {
	id           string
	projectID    string
	definitionID string
	startedAt    time.Time

	registry *Registry
	worker   Worker
	conn     channel
}

// ID returns the instance id.
func (i *Instance) ID() string {
	return i.id
}

// ProjectID returns the owning project id.
func (i *Instance) ProjectID() string {
	return i.projectID
}

// StartedAt returns when the instance was spawned.
func (i *Instance) StartedAt() time.Time {
	return i.startedAt
}

// DefinitionID resolves the definition this instance was spawned from.
// It fails once that definition has been unregistered.
func (i *Instance) DefinitionID() (string, error) {
	if _, ok := i.registry.Definition(i.definitionID); !ok {
		return "", ErrDefinitionNotFound
	}
	return i.definitionID, nil
}

// Alive reports whether both the process and the channel are up.
func (i *Instance) Alive() bool {
	select {
	case <-i.worker.Done():
		return false
	case <-i.conn.Done():
		return false
	default:
		return true
	}
}

// DidChangeConfiguration forwards settings to the server.
func (i *Instance) DidChangeConfiguration(ctx context.Context, settings lsp.Settings) error {
	if !i.Alive() {
		return ErrInstanceDead
	}
	return i.conn.DidChangeConfiguration(ctx, settings)
}

// stop shuts the server down politely, then stops the process.
func (i *Instance) stop(ctx context.Context) error {
	if i.Alive() {
		sctx, cancel := context.WithTimeout(ctx, shutdownGrace)
		_ = i.conn.Shutdown(sctx)
		cancel()
	}
	err := i.worker.Stop(ctx)
	_ = i.conn.Close()
	return err
}
