// Package configsync persists a new API token and pushes it to every
// running Rosie language server.
//
// One sweep moves through these phases:
//
//	Idle -> Persisting -> Aborted
//	                   -> Enumerating -> Notifying -> Done
//
// Persisting happens first and alone: if the store rejects the value no
// server is notified. After that, failures are per target. A project whose
// instances cannot be listed, an instance whose definition cannot be
// resolved, or a notification that cannot be sent is recorded in the Report
// and logged, and the sweep continues with the next target.
//
// The settings sent to each server are read back from the store at send
// time, so every server receives the persisted value.
package configsync
