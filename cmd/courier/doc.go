// Package main hosts the courier CLI entrypoint and command graph.
//
// The Cobra command tree runs the relay daemon in the foreground and
// translates publish, read-back, purge, status and listen invocations into
// HTTP and websocket calls against a running daemon. Configuration is
// resolved once per invocation through commandContext.
package main
