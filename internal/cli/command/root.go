// Package command defines the rosiels-cli commands.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rosiels-go/internal/cli/config"
	"github.com/yndnr/rosiels-go/internal/cli/connection"
	"github.com/yndnr/rosiels-go/internal/cli/output"
	"github.com/yndnr/rosiels-go/internal/infra/buildinfo"
)

const requestTimeout = 30 * time.Second

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "rosiels-cli",
		Usage:   "manage the Rosie language server host",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			StatusCommand(),
			TokenCommand(),
			ProjectCommand(),
			LaunchCommand(),
			VersionCommand(),
		},
		HideVersion: true,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "socket",
			Aliases: []string{"s"},
			Usage:   "path of the host's management socket",
			EnvVars: []string{"ROSIELS_SOCKET"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI preferences file",
			Value:   config.DefaultConfigPath(),
		},
	}
}

// GlobalFlags are the resolved global options.
type GlobalFlags struct {
	Socket string
	Output output.Format
}

// ParseGlobalFlags merges the command line over the preferences file.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	socket := cfg.Socket
	if c.IsSet("socket") {
		socket = c.String("socket")
	}
	format := cfg.Output
	if c.IsSet("output") {
		format = c.String("output")
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{Socket: socket, Output: f}, nil
}

// call runs one command against the host and decodes the result.
func call(c *cli.Context, command string, args map[string]string, out any) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	client := connection.NewSocketClient(flags.Socket)
	defer client.Close()

	ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
	defer cancel()
	return client.Call(ctx, command, args, out)
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(flags.Output).Format(c.App.Writer, data)
}

// renderTable writes table in table mode and data otherwise.
func renderTable(c *cli.Context, data any, table *output.Table) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	if flags.Output == output.FormatTable {
		return table.Render(c.App.Writer)
	}
	return output.NewFormatter(flags.Output).Format(c.App.Writer, data)
}

func usageError(c *cli.Context, format string, args ...any) error {
	cli.ShowSubcommandHelp(c)
	return cli.Exit(fmt.Sprintf(format, args...), 2)
}
