package workspace

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrProjectNotFound    = errors.New("workspace: project not found")
	ErrProjectClosed      = errors.New("workspace: project closed")
	ErrDefinitionNotFound = errors.New("workspace: server definition not registered")
	ErrInstanceDead       = errors.New("workspace: server instance not running")
)

// Project is a snapshot of an opened project.
type Project struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Root     string    `json:"root" yaml:"root"`
	OpenedAt time.Time `json:"opened_at" yaml:"opened_at"`

	accessible bool
}

// Accessible reports whether the project was open when the snapshot was taken.
func (p Project) Accessible() bool {
	return p.accessible
}

// Worker is a running language server process.
type Worker interface {
	io.ReadWriteCloser
	Done() <-chan struct{}
	Stop(ctx context.Context) error
}

// Spawner starts workers for one definition.
type Spawner interface {
	Spawn(ctx context.Context) (Worker, error)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(ctx context.Context) (Worker, error)

// Spawn implements Spawner.
func (f SpawnerFunc) Spawn(ctx context.Context) (Worker, error) {
	return f(ctx)
}

// Definition is a registered kind of language server.
type Definition struct {
	ID      string
	Name    string
	Spawner Spawner
}
