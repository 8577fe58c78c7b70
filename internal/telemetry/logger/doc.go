// Package logger provides structured logging for rosiels.
//
// It wraps log/slog behind a small Logger interface:
//
//   - logger.go: handler construction, level control, package-level default
//   - context.go: context propagation of the logger, project and sync ids
//   - redact.go: masking of credentials before they reach any output
//
// The API token handled by the host must never be written to a log line.
// Attributes with sensitive key names are redacted unconditionally, and
// values registered through RegisterSecret are masked wherever they appear.
package logger
