// Package main provides the entry point for rosiels-cli.
//
// rosiels-cli manages a running rosiels-host over its local socket: it
// edits the Codiga API token, opens and closes projects and shows what
// the host would launch.
//
// Usage:
//
//	rosiels-cli token set
//	rosiels-cli project open ~/src/app
//	rosiels-cli --output json status
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/rosiels-go/internal/cli/command"
)

func main() {
	app := command.App()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
