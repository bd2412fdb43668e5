// Package daemon coordinates the long-running courier process.
//
// It wires the store, registry, ownership manager, relay service, forward
// dispatcher and liveness monitor into a single lifecycle with flock-based
// locking to prevent multiple instances. Run serves the HTTP API (publish,
// read-back, status, metrics) and the websocket endpoint on one listener and
// supervises the background loops with an errgroup.
//
// Keep orchestration logic here; relay semantics belong in their own
// packages.
package daemon
