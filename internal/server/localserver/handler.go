package localserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/rosiels-go/internal/configsync"
	"github.com/yndnr/rosiels-go/internal/infra/buildinfo"
	"github.com/yndnr/rosiels-go/internal/launcher"
	"github.com/yndnr/rosiels-go/internal/telemetry/logger"
	"github.com/yndnr/rosiels-go/internal/telemetry/metric"
	"github.com/yndnr/rosiels-go/internal/workspace"
)

// ErrUnknownCommand is reported for commands the handler does not know.
var ErrUnknownCommand = errors.New("unknown command")

// TokenReader reads the stored token.
type TokenReader interface {
	APIToken() (string, error)
}

// Syncer applies token changes.
type Syncer interface {
	Apply(ctx context.Context, token string) (*configsync.Report, error)
	Resync(ctx context.Context) (*configsync.Report, error)
}

// Projects is the project registry.
type Projects interface {
	Open(ctx context.Context, root string) (workspace.Project, error)
	Close(ctx context.Context, id string) error
	Projects() []workspace.Project
	Stats() metric.HostStats
}

// LaunchInfo describes the launcher state.
type LaunchInfo interface {
	Spec() (launcher.Spec, bool)
	Err() error
}

// Deps wires the handler to the host.
type Deps struct {
	Tokens   TokenReader
	Sync     Syncer
	Projects Projects
	Launcher LaunchInfo

	// OnOpen runs after a project is opened, typically to start its
	// language server. Its error is reported as a warning.
	OnOpen func(ctx context.Context, p workspace.Project) error

	Logger logger.Logger
}

// Handler executes local management commands.
type Handler struct {
	deps    Deps
	started time.Time
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	return &Handler{deps: deps, started: time.Now()}
}

// Execute runs one request.
func (h *Handler) Execute(ctx context.Context, req Request) Response {
	data, err := h.dispatch(ctx, req)
	if err != nil {
		return Response{Error: err.Error()}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Response{Error: fmt.Sprintf("encode response: %v", err)}
	}
	return Response{OK: true, Data: raw}
}

func (h *Handler) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Command {
	case CmdStatus:
		return h.status()
	case CmdTokenGet:
		return h.tokenGet()
	case CmdTokenSet:
		value, ok := req.Args[ArgValue]
		if !ok {
			return nil, errors.New("missing argument: value")
		}
		return h.tokenSet(ctx, value)
	case CmdTokenSync:
		return h.tokenSync(ctx)
	case CmdProjectOpen:
		path := req.Args[ArgPath]
		if path == "" {
			return nil, errors.New("missing argument: path")
		}
		return h.projectOpen(ctx, path)
	case CmdProjectClose:
		id := req.Args[ArgID]
		if id == "" {
			return nil, errors.New("missing argument: id")
		}
		return h.projectClose(ctx, id)
	case CmdProjectList:
		return h.projectList(), nil
	case CmdLaunchShow:
		return h.launchShow(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, req.Command)
	}
}

func (h *Handler) status() (StatusData, error) {
	info := buildinfo.Get()
	data := StatusData{
		Version: info.Version,
		Commit:  info.Commit,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	if h.deps.Projects != nil {
		stats := h.deps.Projects.Stats()
		data.ProjectsOpen = stats.ProjectsOpen
		data.InstancesActive = stats.InstancesActive
	}
	if h.deps.Launcher != nil {
		_, data.LauncherEnabled = h.deps.Launcher.Spec()
		if err := h.deps.Launcher.Err(); err != nil {
			data.LauncherError = err.Error()
		}
	}
	if h.deps.Tokens != nil {
		token, err := h.deps.Tokens.APIToken()
		if err != nil {
			return data, err
		}
		data.TokenSet = token != ""
	}
	return data, nil
}

func (h *Handler) tokenGet() (TokenData, error) {
	if h.deps.Tokens == nil {
		return TokenData{}, errors.New("credential store not available")
	}
	token, err := h.deps.Tokens.APIToken()
	if err != nil {
		return TokenData{}, err
	}
	return TokenData{Set: token != "", Token: logger.RedactString(token)}, nil
}

func (h *Handler) tokenSet(ctx context.Context, value string) (SyncData, error) {
	if h.deps.Sync == nil {
		return SyncData{}, errors.New("synchronizer not available")
	}
	report, err := h.deps.Sync.Apply(ctx, value)
	if err != nil {
		return SyncData{}, err
	}
	logger.RegisterSecret(value)
	return syncData(report), nil
}

func (h *Handler) tokenSync(ctx context.Context) (SyncData, error) {
	if h.deps.Sync == nil {
		return SyncData{}, errors.New("synchronizer not available")
	}
	report, err := h.deps.Sync.Resync(ctx)
	if err != nil {
		return SyncData{}, err
	}
	return syncData(report), nil
}

func syncData(r *configsync.Report) SyncData {
	data := SyncData{
		SyncID:     r.SyncID,
		Phase:      string(r.Phase),
		Skipped:    r.Skipped,
		Sent:       r.Sent(),
		Failed:     r.Failed(),
		DurationMs: r.Duration.Milliseconds(),
		Targets:    make([]TargetData, 0, len(r.Targets)),
	}
	for _, t := range r.Targets {
		td := TargetData{
			ProjectID:  t.ProjectID,
			Project:    t.ProjectName,
			InstanceID: t.InstanceID,
			Sent:       t.Sent,
		}
		if t.Err != nil {
			td.Error = t.Err.Error()
		}
		data.Targets = append(data.Targets, td)
	}
	return data
}

func (h *Handler) projectOpen(ctx context.Context, path string) (ProjectData, error) {
	if h.deps.Projects == nil {
		return ProjectData{}, errors.New("project registry not available")
	}
	p, err := h.deps.Projects.Open(ctx, path)
	if err != nil {
		return ProjectData{}, err
	}
	data := projectData(p)
	if h.deps.OnOpen != nil {
		if err := h.deps.OnOpen(ctx, p); err != nil {
			h.deps.Logger.Warn("project opened without language server", "project_id", p.ID, "error", err)
			data.Warning = err.Error()
		}
	}
	return data, nil
}

func (h *Handler) projectClose(ctx context.Context, id string) (map[string]string, error) {
	if h.deps.Projects == nil {
		return nil, errors.New("project registry not available")
	}
	if err := h.deps.Projects.Close(ctx, id); err != nil {
		return nil, err
	}
	return map[string]string{"closed": id}, nil
}

func (h *Handler) projectList() []ProjectData {
	if h.deps.Projects == nil {
		return []ProjectData{}
	}
	projects := h.deps.Projects.Projects()
	out := make([]ProjectData, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectData(p))
	}
	return out
}

func projectData(p workspace.Project) ProjectData {
	return ProjectData{
		ID:         p.ID,
		Name:       p.Name,
		Root:       p.Root,
		OpenedAt:   p.OpenedAt.Format(time.RFC3339),
		Accessible: p.Accessible(),
	}
}

func (h *Handler) launchShow() LaunchData {
	if h.deps.Launcher == nil {
		return LaunchData{Error: "launcher not configured"}
	}
	return Describe(h.deps.Launcher)
}

// Describe renders the launcher state.
func Describe(l LaunchInfo) LaunchData {
	spec, ok := l.Spec()
	data := LaunchData{Enabled: ok}
	if ok {
		data.Command = spec.Command
		data.Dir = spec.Dir
	}
	if err := l.Err(); err != nil {
		data.Error = err.Error()
	}
	return data
}
