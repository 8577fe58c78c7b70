package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/yndnr/rosiels-go/internal/cli/output"
	"github.com/yndnr/rosiels-go/internal/server/localserver"
)

// TokenCommand returns the token subcommand group.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage the Codiga API token",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the stored token (masked)",
				Action: tokenShow,
			},
			{
				Name:  "set",
				Usage: "Store a new token and push it to running language servers",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "stdin",
						Usage: "read the token from standard input",
					},
					&cli.BoolFlag{
						Name:  "clear",
						Usage: "store an empty token",
					},
				},
				Action: tokenSet,
			},
			{
				Name:   "sync",
				Usage:  "Push the stored token to running language servers again",
				Action: tokenSync,
			},
		},
	}
}

func tokenShow(c *cli.Context) error {
	var data localserver.TokenData
	if err := call(c, localserver.CmdTokenGet, nil, &data); err != nil {
		return err
	}
	return render(c, data)
}

func tokenSet(c *cli.Context) error {
	if c.NArg() > 0 {
		return usageError(c, "the token is not accepted as an argument; use --stdin or the prompt")
	}

	var value string
	switch {
	case c.Bool("clear"):
	case c.Bool("stdin"):
		v, err := readLine(c.App.Reader)
		if err != nil {
			return err
		}
		value = v
	default:
		v, err := promptSecret(c.App.ErrWriter, "Codiga API token: ")
		if err != nil {
			return err
		}
		value = v
	}

	var data localserver.SyncData
	err := call(c, localserver.CmdTokenSet, map[string]string{localserver.ArgValue: value}, &data)
	if err != nil {
		return err
	}
	return renderSync(c, data)
}

func tokenSync(c *cli.Context) error {
	var data localserver.SyncData
	if err := call(c, localserver.CmdTokenSync, nil, &data); err != nil {
		return err
	}
	return renderSync(c, data)
}

func renderSync(c *cli.Context, data localserver.SyncData) error {
	table := &output.Table{Headers: []string{"PROJECT", "INSTANCE", "SENT", "ERROR"}}
	for _, t := range data.Targets {
		table.AddRow(dash(t.Project), dash(t.InstanceID), fmt.Sprint(t.Sent), dash(t.Error))
	}
	if err := renderTable(c, data, table); err != nil {
		return err
	}

	flags, err := ParseGlobalFlags(c)
	if err != nil || flags.Output != output.FormatTable {
		return err
	}
	switch {
	case data.Skipped:
		fmt.Fprintln(c.App.Writer, "language server not registered, no notifications sent")
	default:
		fmt.Fprintf(c.App.Writer, "sync %s: %d sent, %d failed\n", data.SyncID, data.Sent, data.Failed)
	}
	return nil
}

func readLine(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptSecret(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("standard input is not a terminal; use --stdin")
	}
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(b), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
