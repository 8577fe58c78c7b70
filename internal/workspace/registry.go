package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/rosiels-go/internal/configsync"
	"github.com/yndnr/rosiels-go/internal/lsp"
	"github.com/yndnr/rosiels-go/internal/telemetry/logger"
	"github.com/yndnr/rosiels-go/internal/telemetry/metric"
)

// Options configures a Registry.
type Options struct {
	ClientName    string
	ClientVersion string

	// Settings answers workspace/configuration requests from servers.
	Settings lsp.SettingsSource

	Logger  logger.Logger
	Metrics *metric.Registry
}

type project struct {
	Project
}

// Registry holds projects, definitions and instances.
type Registry struct {
	opts   Options
	logger logger.Logger

	mu        sync.RWMutex
	defs      map[string]Definition
	projects  map[string]*project
	order     []string
	instances map[instanceKey]*Instance

	// spawnMu serializes Ensure so one pair never gets two instances.
	spawnMu sync.Mutex
}

type instanceKey struct {
	projectID    string
	definitionID string
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	l := opts.Logger
	if l == nil {
		l = logger.Default()
	}
	return &Registry{
		opts:      opts,
		logger:    l,
		defs:      make(map[string]Definition),
		projects:  make(map[string]*project),
		instances: make(map[instanceKey]*Instance),
	}
}

// Register adds or replaces a definition.
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return errors.New("workspace: definition id is required")
	}
	if def.Spawner == nil {
		return fmt.Errorf("workspace: definition %s has no spawner", def.ID)
	}

	r.mu.Lock()
	r.defs[def.ID] = def
	r.mu.Unlock()

	r.logger.Info("server definition registered", "definition_id", def.ID, "name", def.Name)
	return nil
}

// Unregister removes a definition. Running instances are left alone.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.defs, id)
	r.mu.Unlock()
}

// Definition looks up a definition.
func (r *Registry) Definition(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// Open opens the project rooted at root, or returns it if already open.
func (r *Registry) Open(ctx context.Context, root string) (Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Project{}, fmt.Errorf("workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Project{}, fmt.Errorf("workspace: %w", err)
	}
	if !info.IsDir() {
		return Project{}, fmt.Errorf("workspace: %s is not a directory", abs)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		if p := r.projects[id]; p.Root == abs && p.accessible {
			return p.Project, nil
		}
	}

	p := &project{Project: Project{
		ID:         ulid.Make().String(),
		Name:       filepath.Base(abs),
		Root:       abs,
		OpenedAt:   time.Now(),
		accessible: true,
	}}
	r.projects[p.ID] = p
	r.order = append(r.order, p.ID)

	r.logger.Info("project opened", "project_id", p.ID, "root", abs)
	return p.Project, nil
}

// Close marks the project inaccessible and stops its instances.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	p, ok := r.projects[id]
	if !ok {
		r.mu.Unlock()
		return ErrProjectNotFound
	}
	p.accessible = false
	stopping := r.detachLocked(func(k instanceKey) bool { return k.projectID == id })
	r.mu.Unlock()

	err := stopAll(ctx, stopping)
	r.logger.Info("project closed", "project_id", id, "instances_stopped", len(stopping))
	return err
}

// Project returns a snapshot of one project.
func (r *Registry) Project(id string) (Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return Project{}, false
	}
	return p.Project, true
}

// Projects returns all projects, open or closed, in open order.
func (r *Registry) Projects() []Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Project, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.projects[id].Project)
	}
	return out
}

// AccessibleProjects returns the open projects in open order.
func (r *Registry) AccessibleProjects(ctx context.Context) ([]Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Project
	for _, id := range r.order {
		if p := r.projects[id]; p.accessible {
			out = append(out, p.Project)
		}
	}
	return out, nil
}

// Ensure returns the live instance for the pair, spawning and initializing
// one when needed.
func (r *Registry) Ensure(ctx context.Context, projectID, definitionID string) (*Instance, error) {
	r.spawnMu.Lock()
	defer r.spawnMu.Unlock()

	key := instanceKey{projectID: projectID, definitionID: definitionID}

	r.mu.Lock()
	p, ok := r.projects[projectID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrProjectNotFound
	}
	if !p.accessible {
		r.mu.Unlock()
		return nil, ErrProjectClosed
	}
	def, ok := r.defs[definitionID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrDefinitionNotFound
	}
	var stale []*Instance
	if inst, ok := r.instances[key]; ok {
		if inst.Alive() {
			r.mu.Unlock()
			return inst, nil
		}
		delete(r.instances, key)
		stale = append(stale, inst)
	}
	root := p.Root
	r.mu.Unlock()

	_ = stopAll(ctx, stale)

	inst, err := r.spawn(ctx, def, projectID, root)
	if err != nil {
		r.opts.Metrics.CountLaunch(metric.ResultFailed)
		return nil, err
	}
	r.opts.Metrics.CountLaunch(metric.ResultStarted)

	r.mu.Lock()
	if p := r.projects[projectID]; p == nil || !p.accessible {
		r.mu.Unlock()
		_ = inst.stop(ctx)
		return nil, ErrProjectClosed
	}
	r.instances[key] = inst
	r.mu.Unlock()

	return inst, nil
}

func (r *Registry) spawn(ctx context.Context, def Definition, projectID, root string) (*Instance, error) {
	log := r.logger.With("project_id", projectID, "definition_id", def.ID)

	worker, err := def.Spawner.Spawn(ctx)
	if err != nil {
		log.Error("cannot start language server", "error", err)
		return nil, fmt.Errorf("workspace: spawn %s: %w", def.ID, err)
	}

	conn, err := lsp.Dial(ctx, worker, lsp.DialOptions{
		Root:          root,
		ClientName:    r.opts.ClientName,
		ClientVersion: r.opts.ClientVersion,
		Settings:      r.opts.Settings,
		Logger:        log.Slog(),
	})
	if err != nil {
		_ = worker.Stop(ctx)
		log.Error("language server handshake failed", "error", err)
		return nil, fmt.Errorf("workspace: initialize %s: %w", def.ID, err)
	}

	inst := &Instance{
		id:           ulid.Make().String(),
		projectID:    projectID,
		definitionID: def.ID,
		startedAt:    time.Now(),
		registry:     r,
		worker:       worker,
		conn:         conn,
	}
	log.Info("language server ready", "instance_id", inst.id, "server", conn.ServerName())
	return inst, nil
}

// Instances lists the live instances bound to a project, in definition id
// order. Dead instances are removed.
func (r *Registry) Instances(ctx context.Context, projectID string) ([]*Instance, error) {
	r.mu.Lock()
	if _, ok := r.projects[projectID]; !ok {
		r.mu.Unlock()
		return nil, ErrProjectNotFound
	}

	var live []*Instance
	dead := r.detachLocked(func(k instanceKey) bool {
		if k.projectID != projectID {
			return false
		}
		inst := r.instances[k]
		if inst.Alive() {
			live = append(live, inst)
			return false
		}
		return true
	})
	r.mu.Unlock()

	if len(dead) > 0 {
		r.logger.Debug("pruned dead language servers", "project_id", projectID, "count", len(dead))
		_ = stopAll(ctx, dead)
	}

	sortInstances(live)
	return live, nil
}

// CloseAll stops every instance. Projects stay registered.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	all := r.detachLocked(func(instanceKey) bool { return true })
	r.mu.Unlock()
	return stopAll(ctx, all)
}

// Stats reports counts for the host metrics collector.
func (r *Registry) Stats() metric.HostStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats metric.HostStats
	for _, p := range r.projects {
		if p.accessible {
			stats.ProjectsOpen++
		}
	}
	for _, inst := range r.instances {
		if inst.Alive() {
			stats.InstancesActive++
		}
	}
	return stats
}

// detachLocked removes and returns the instances whose key matches.
func (r *Registry) detachLocked(match func(instanceKey) bool) []*Instance {
	var out []*Instance
	for k, inst := range r.instances {
		if match(k) {
			out = append(out, inst)
			delete(r.instances, k)
		}
	}
	return out
}

func stopAll(ctx context.Context, instances []*Instance) error {
	var errs []error
	for _, inst := range instances {
		if err := inst.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop instance %s: %w", inst.id, err))
		}
	}
	return errors.Join(errs...)
}

func sortInstances(list []*Instance) {
	slices.SortFunc(list, func(a, b *Instance) int {
		return strings.Compare(a.definitionID, b.definitionID)
	})
}

// SyncHost adapts the registry to the configuration synchronizer.
func (r *Registry) SyncHost() configsync.Host {
	return syncHost{r: r}
}

type syncHost struct {
	r *Registry
}

func (h syncHost) HasDefinition(id string) bool {
	_, ok := h.r.Definition(id)
	return ok
}

func (h syncHost) AccessibleProjects(ctx context.Context) ([]configsync.Project, error) {
	projects, err := h.r.AccessibleProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]configsync.Project, len(projects))
	for i, p := range projects {
		out[i] = configsync.Project{ID: p.ID, Name: p.Name}
	}
	return out, nil
}

func (h syncHost) Instances(ctx context.Context, p configsync.Project) ([]configsync.Instance, error) {
	instances, err := h.r.Instances(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	out := make([]configsync.Instance, len(instances))
	for i, inst := range instances {
		out[i] = inst
	}
	return out, nil
}
