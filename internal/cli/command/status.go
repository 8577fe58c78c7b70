package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/rosiels-go/internal/infra/buildinfo"
	"github.com/yndnr/rosiels-go/internal/server/localserver"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show host status",
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	var data localserver.StatusData
	if err := call(c, localserver.CmdStatus, nil, &data); err != nil {
		return err
	}
	return render(c, data)
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show CLI version",
		Action: func(c *cli.Context) error {
			return render(c, buildinfo.Get())
		},
	}
}
