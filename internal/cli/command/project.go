package command

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rosiels-go/internal/cli/output"
	"github.com/yndnr/rosiels-go/internal/server/localserver"
)

// ProjectCommand returns the project subcommand group.
func ProjectCommand() *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Manage open projects",
		Subcommands: []*cli.Command{
			{
				Name:      "open",
				Usage:     "Open a project and start its language server",
				ArgsUsage: "PATH",
				Action:    projectOpen,
			},
			{
				Name:      "close",
				Usage:     "Close a project and stop its language servers",
				ArgsUsage: "ID",
				Action:    projectClose,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List projects",
				Action:  projectList,
			},
		},
	}
}

func projectOpen(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c, "expected exactly one PATH")
	}
	path, err := filepath.Abs(c.Args().First())
	if err != nil {
		return err
	}

	var data localserver.ProjectData
	if err := call(c, localserver.CmdProjectOpen, map[string]string{localserver.ArgPath: path}, &data); err != nil {
		return err
	}
	if data.Warning != "" {
		fmt.Fprintf(c.App.ErrWriter, "warning: %s\n", data.Warning)
	}
	return render(c, data)
}

func projectClose(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c, "expected exactly one ID")
	}
	id := c.Args().First()
	if err := call(c, localserver.CmdProjectClose, map[string]string{localserver.ArgID: id}, nil); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "closed %s\n", id)
	return nil
}

func projectList(c *cli.Context) error {
	var data []localserver.ProjectData
	if err := call(c, localserver.CmdProjectList, nil, &data); err != nil {
		return err
	}
	table := &output.Table{Headers: []string{"ID", "NAME", "ROOT", "OPENED", "ACCESSIBLE"}}
	for _, p := range data {
		table.AddRow(p.ID, p.Name, p.Root, p.OpenedAt, fmt.Sprint(p.Accessible))
	}
	return renderTable(c, data, table)
}
