// Package workspace tracks open projects and the language server instances
// running for them.
//
// A Definition describes a kind of language server and how to spawn it. The
// Registry starts at most one Instance per (project, definition) pair, on
// demand, and drops instances whose process or channel has died. Closing a
// project stops its instances; the project stays listed but is no longer
// accessible.
package workspace
