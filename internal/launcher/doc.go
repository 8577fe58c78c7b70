// Package launcher builds and starts the Rosie language server process.
//
// The command is computed once, when the Launcher is created:
//
//	<runtime location>/<runtime name> <absolute entry script> --stdio
//
// The runtime location comes from an environment variable (NODE_PATH by
// default). When it is unset the launcher is disabled: a diagnostic is
// emitted once and no process is ever started. The working directory is the
// host's current directory.
package launcher
