// Package registry tracks live endpoints and the channels they subscribe to.
//
// A Registry is the only shared mutable state in the relay. Identities map to
// at most one live Handle (last registration wins) and channel names map to
// subscriber sets. Each handle carries an explicit liveness state that only
// Sweep, Ack and Disconnect transition.
package registry
