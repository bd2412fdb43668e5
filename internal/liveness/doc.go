// Package liveness evicts endpoints that stop acknowledging probes.
//
// Every tick the Monitor sweeps the registry: alive endpoints move to
// awaiting-ack and receive a websocket ping, endpoints still awaiting an ack
// from the previous tick are evicted and their transports closed. An endpoint
// is therefore removed after two consecutive unanswered probes.
package liveness
