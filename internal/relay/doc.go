// Package relay implements the publish path and message read-back.
//
// Publish persists first, then snapshots the channel's live endpoints from
// the registry and sends to each. Only when no send succeeded is the message
// handed to the push-forward dispatcher, so a publish is delivered live or
// forwarded but never both. A failed live send disconnects the endpoint.
//
// In slug mode the channel is routed through its owner; publishing to an
// unowned slug is rejected with ErrNotFound before anything is stored.
package relay
