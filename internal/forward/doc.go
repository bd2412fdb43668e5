// Package forward hands messages nobody received live to an external push
// gateway.
//
// Two gateway dialects are supported: a JSON endpoint that answers with the
// number of devices reached, and an ntfy-compatible topic server that takes
// the body as text with Title/Priority/Tags headers. Without a configured
// gateway New returns a noop forwarder.
//
// Dispatcher makes every forward fire-and-forget. Publishers enqueue without
// blocking; worker goroutines drain the queue under a token-bucket limit and
// report failures only through logs and metrics.
package forward
