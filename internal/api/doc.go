// Package api defines the wire-format types shared by the courier daemon,
// its websocket endpoints, the push gateway and the CLI.
//
// # Key Types
//
// Message: a relay message as published, stored and delivered.
//
// Receipt: the publish reply, reporting live deliveries and whether the
// message was handed to the push gateway.
//
// Frame: one websocket text frame. Endpoints send subscribe, unsubscribe,
// claim, release and ping; the daemon replies with ok, error, pong and
// message frames.
//
// DaemonStatus: runtime information for the status endpoint.
//
// # Client
//
// Client is a small HTTP client for the daemon API used by the CLI. Non-2xx
// replies decode into *StatusError so callers can match on the reason.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Message times are unix seconds; other
// timestamps use RFC3339 with milliseconds.
package api
