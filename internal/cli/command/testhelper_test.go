package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rosiels-go/internal/configsync"
	"github.com/yndnr/rosiels-go/internal/launcher"
	"github.com/yndnr/rosiels-go/internal/server/localserver"
	"github.com/yndnr/rosiels-go/internal/telemetry/logger"
	"github.com/yndnr/rosiels-go/internal/telemetry/metric"
	"github.com/yndnr/rosiels-go/internal/workspace"
)

// fakeHost backs a real local server with in-memory state.
type fakeHost struct {
	token    string
	noServer bool
	projects []workspace.Project
}

func (h *fakeHost) APIToken() (string, error) { return h.token, nil }

func (h *fakeHost) Apply(ctx context.Context, token string) (*configsync.Report, error) {
	h.token = token
	return h.Resync(ctx)
}

func (h *fakeHost) Resync(ctx context.Context) (*configsync.Report, error) {
	r := &configsync.Report{SyncID: "01SYNC", Phase: configsync.PhaseDone}
	if h.noServer {
		r.Skipped = true
		return r, nil
	}
	for _, p := range h.projects {
		r.Targets = append(r.Targets, configsync.TargetResult{
			ProjectID: p.ID, ProjectName: p.Name, InstanceID: "inst-" + p.ID, Sent: true,
		})
	}
	return r, nil
}

func (h *fakeHost) Open(ctx context.Context, root string) (workspace.Project, error) {
	p := workspace.Project{ID: "p" + filepath.Base(root), Name: filepath.Base(root), Root: root, OpenedAt: time.Unix(0, 0).UTC()}
	h.projects = append(h.projects, p)
	return p, nil
}

func (h *fakeHost) Close(ctx context.Context, id string) error {
	for i, p := range h.projects {
		if p.ID == id {
			h.projects = append(h.projects[:i], h.projects[i+1:]...)
			return nil
		}
	}
	return workspace.ErrProjectNotFound
}

func (h *fakeHost) Projects() []workspace.Project { return h.projects }

func (h *fakeHost) Stats() metric.HostStats {
	return metric.HostStats{ProjectsOpen: len(h.projects)}
}

func (h *fakeHost) Spec() (launcher.Spec, bool) { return launcher.Spec{}, false }
func (h *fakeHost) Err() error                  { return launcher.ErrRuntimeMissing }

// startHost runs a local server on a short temp socket path.
func startHost(t *testing.T, host *fakeHost) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "rcl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	h := localserver.NewHandler(localserver.Deps{
		Tokens:   host,
		Sync:     host,
		Projects: host,
		Launcher: host,
		Logger:   logger.Nop(),
	})
	srv := localserver.New(filepath.Join(dir, "h.sock"), h, localserver.Options{Logger: logger.Nop()})
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv.Path()
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the CLI with global flags pointing at socket.
func run(t *testing.T, socket, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := []string{"rosiels-cli",
		"--config", filepath.Join(t.TempDir(), "cli.yaml"),
		"--socket", socket}
	full = append(full, args...)
	err := app.Run(full)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}
