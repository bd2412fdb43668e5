// Package transport serves live endpoints over websockets.
//
// Each connection at /ws/{identity} registers one endpoint in the registry.
// Every text frame is one JSON command (subscribe, unsubscribe, claim,
// release, ping) answered by one reply frame; published messages arrive as
// "message" frames. Websocket pongs acknowledge liveness probes. When the
// read side fails the endpoint is disconnected exactly once.
package transport
