package configsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/rosiels-go/internal/lsp"
	"github.com/yndnr/rosiels-go/internal/telemetry/logger"
	"github.com/yndnr/rosiels-go/internal/telemetry/metric"
)

// DefaultDefinitionID identifies the Rosie language server definition.
const DefaultDefinitionID = "rosie.language.server"

// ErrNoStore is returned by New when store is nil.
var ErrNoStore = errors.New("configsync: token store is required")

// TokenStore persists the API token. *credential.Store satisfies it.
type TokenStore interface {
	APIToken() (string, error)
	SetAPIToken(value string) error
}

// Project is an accessible project of the host.
type Project struct {
	ID   string
	Name string
}

// Instance is a running language server bound to a project.
type Instance interface {
	ID() string
	DefinitionID() (string, error)
	DidChangeConfiguration(ctx context.Context, settings lsp.Settings) error
}

// Host is the discovery boundary: definitions, projects and their servers.
type Host interface {
	HasDefinition(id string) bool
	AccessibleProjects(ctx context.Context) ([]Project, error)
	Instances(ctx context.Context, project Project) ([]Instance, error)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithDefinitionID sets the server definition whose instances are notified.
func WithDefinitionID(id string) Option {
	return func(s *Synchronizer) {
		s.definitionID = id
	}
}

// WithConcurrency bounds parallel project sweeps. 1 keeps host order.
func WithConcurrency(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = l
	}
}

// WithMetrics records sweep outcomes.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// Synchronizer applies token changes.
type Synchronizer struct {
	store        TokenStore
	host         Host
	definitionID string
	concurrency  int
	logger       logger.Logger
	metrics      *metric.Registry

	// mu serializes sweeps so a later Apply never interleaves with an
	// earlier one.
	mu sync.Mutex
}

// New creates a Synchronizer. A nil host is allowed and behaves like a host
// without the server definition.
func New(store TokenStore, host Host, opts ...Option) (*Synchronizer, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	s := &Synchronizer{
		store:        store,
		host:         host,
		definitionID: DefaultDefinitionID,
		concurrency:  1,
		logger:       logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Apply persists token and notifies every matching server. The returned
// error is non-nil only when persisting failed, in which case nothing was
// sent and the report phase is PhaseAborted.
func (s *Synchronizer) Apply(ctx context.Context, token string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ctx := s.begin(ctx)
	log := logger.L(ctx).With("definition_id", s.definitionID)

	report.Phase = PhasePersisting
	if err := s.store.SetAPIToken(token); err != nil {
		report.Phase = PhaseAborted
		s.finish(report)
		log.Error("api token not saved, no server notified", "error", err)
		return report, err
	}
	log.Info("api token saved")

	s.sweep(ctx, report, log)
	return report, nil
}

// Resync notifies every matching server of the stored token without
// writing it.
func (s *Synchronizer) Resync(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ctx := s.begin(ctx)
	log := logger.L(ctx).With("definition_id", s.definitionID)

	if _, err := s.store.APIToken(); err != nil {
		report.Phase = PhaseAborted
		s.finish(report)
		log.Error("api token unreadable, no server notified", "error", err)
		return report, err
	}

	s.sweep(ctx, report, log)
	return report, nil
}

func (s *Synchronizer) begin(ctx context.Context) (*Report, context.Context) {
	report := &Report{
		SyncID:  ulid.Make().String(),
		Phase:   PhaseIdle,
		Started: time.Now(),
	}
	if s.logger != nil {
		ctx = logger.WithLogger(ctx, s.logger)
	}
	return report, logger.WithSyncID(ctx, report.SyncID)
}

func (s *Synchronizer) finish(report *Report) {
	report.Duration = time.Since(report.Started)

	result := metric.ResultDone
	switch {
	case report.Phase == PhaseAborted:
		result = metric.ResultAborted
	case report.Skipped:
		result = metric.ResultSkipped
	}
	s.metrics.ObserveSync(result, report.Duration.Seconds())
}

func (s *Synchronizer) sweep(ctx context.Context, report *Report, log logger.Logger) {
	defer s.finish(report)

	if s.host == nil || !s.host.HasDefinition(s.definitionID) {
		report.Skipped = true
		report.Phase = PhaseDone
		log.Debug("server definition not registered, nothing to notify")
		return
	}

	report.Phase = PhaseEnumerating
	projects, err := s.host.AccessibleProjects(ctx)
	if err != nil {
		report.Targets = append(report.Targets, TargetResult{Err: fmt.Errorf("list projects: %w", err)})
		report.Phase = PhaseDone
		log.Error("cannot list projects", "error", err)
		return
	}

	report.Phase = PhaseNotifying
	perProject := make([][]TargetResult, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range projects {
		g.Go(func() error {
			perProject[i] = s.notifyProject(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	for _, results := range perProject {
		report.Targets = append(report.Targets, results...)
	}
	report.Phase = PhaseDone

	log.Info("configuration sync finished",
		"projects", len(projects),
		"sent", report.Sent(),
		"failed", report.Failed())
}

// notifyProject sends the settings to every instance of the project whose
// definition matches. It never returns an error; failures become results.
func (s *Synchronizer) notifyProject(ctx context.Context, p Project) []TargetResult {
	ctx = logger.WithProjectID(ctx, p.ID)
	log := logger.L(ctx).With("project", p.Name)

	instances, err := s.host.Instances(ctx, p)
	if err != nil {
		log.Warn("cannot list language servers", "error", err)
		return []TargetResult{{ProjectID: p.ID, ProjectName: p.Name, Err: fmt.Errorf("list instances: %w", err)}}
	}

	var results []TargetResult
	for _, inst := range instances {
		target := TargetResult{ProjectID: p.ID, ProjectName: p.Name, InstanceID: inst.ID()}

		defID, err := inst.DefinitionID()
		if err != nil {
			target.Err = fmt.Errorf("resolve definition: %w", err)
			log.Warn("cannot resolve server definition", "instance_id", target.InstanceID, "error", err)
			results = append(results, target)
			continue
		}
		if defID != s.definitionID {
			continue
		}

		target.Err = s.send(ctx, inst)
		target.Sent = target.Err == nil
		if target.Err != nil {
			s.metrics.CountNotification(metric.ResultFailed)
			log.Warn("configuration not delivered", "instance_id", target.InstanceID, "error", target.Err)
		} else {
			s.metrics.CountNotification(metric.ResultSent)
			log.Debug("configuration delivered", "instance_id", target.InstanceID)
		}
		results = append(results, target)
	}
	return results
}

// send reads the token back from the store so the server gets exactly what
// was persisted.
func (s *Synchronizer) send(ctx context.Context, inst Instance) error {
	token, err := s.store.APIToken()
	if err != nil {
		return fmt.Errorf("read api token: %w", err)
	}
	return inst.DidChangeConfiguration(ctx, lsp.Settings{CodigaAPIToken: token})
}
