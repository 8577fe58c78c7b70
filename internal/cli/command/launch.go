package command

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	hostconfig "github.com/yndnr/rosiels-go/internal/host/config"
	"github.com/yndnr/rosiels-go/internal/infra/confloader"
	"github.com/yndnr/rosiels-go/internal/launcher"
	"github.com/yndnr/rosiels-go/internal/server/localserver"
)

// LaunchCommand returns the launch subcommand group.
func LaunchCommand() *cli.Command {
	return &cli.Command{
		Name:  "launch",
		Usage: "Inspect the language server launch command",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the command the host would run, computed from this environment",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "host-config",
						Usage: "host configuration file",
					},
					&cli.StringFlag{
						Name:  "resource-root",
						Usage: "installation directory holding the language server",
					},
				},
				Action: launchShow,
			},
		},
	}
}

func launchShow(c *cli.Context) error {
	cfg := hostconfig.Default()
	loader := confloader.NewLoader(confloader.WithConfigFile(c.String("host-config")))
	if err := loader.Load(cfg); err != nil {
		return fmt.Errorf("load host config: %w", err)
	}
	if root := c.String("resource-root"); root != "" {
		cfg.Launcher.ResourceRoot = root
	}

	diag := launcher.DiagnosticsFunc(func(msg string) {
		fmt.Fprintln(c.App.ErrWriter, msg)
	})
	l, err := cfg.Launcher.NewLauncher(diag,
		launcher.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return err
	}
	return render(c, localserver.Describe(l))
}
