// Package preflight provides readiness checks for the filesystem paths and
// the push gateway courier depends on.
//
// The daemon runs RunAll at startup and refuses to start when the data
// directory is unusable; a failing gateway check only produces a warning
// since forwarding is best-effort. The CLI "courier status" command prints
// the same results.
package preflight
