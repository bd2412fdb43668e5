package testsupport

import (
	"context"
	"sync"

	"courier/internal/forward"
	"courier/internal/store"
)

// ForwardCall captures one Forward invocation.
type ForwardCall struct {
	Channel string
	Message store.Message
}

// RecordingForwarder is a forward.Forwarder that remembers every call and
// signals each one on Calls.
type RecordingForwarder struct {
	mu    sync.Mutex
	calls []ForwardCall
	err   error
	sent  int

	Calls chan ForwardCall
}

// NewRecordingForwarder returns a forwarder that reports sent devices per call.
func NewRecordingForwarder(sent int) *RecordingForwarder {
	return &RecordingForwarder{sent: sent, Calls: make(chan ForwardCall, 64)}
}

// Forward records the call.
func (r *RecordingForwarder) Forward(_ context.Context, channel string, msg store.Message) (forward.Result, error) {
	call := ForwardCall{Channel: channel, Message: msg}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	err := r.err
	sent := r.sent
	r.mu.Unlock()

	select {
	case r.Calls <- call:
	default:
	}
	if err != nil {
		return forward.Result{}, err
	}
	return forward.Result{Sent: sent}, nil
}

// Fail makes subsequent calls return err.
func (r *RecordingForwarder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Recorded returns a copy of every call so far.
func (r *RecordingForwarder) Recorded() []ForwardCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ForwardCall(nil), r.calls...)
}
