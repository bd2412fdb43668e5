// Package services defines shared utilities consumed by the relay core and its
// transport boundaries.
//
// Key responsibilities:
//   - Structured error markers (NotFound, AlreadyTaken, InvalidFormat,
//     Unreachable, PersistenceFailure, ForwardFailure) plus the Wrap helper
//     that attaches component and operation context without losing errors.Is.
//   - HTTPStatus/Reason, the single mapping from the taxonomy to wire replies.
//   - Context helpers that stamp correlation IDs, channel names and endpoint
//     identities for logging.
package services
