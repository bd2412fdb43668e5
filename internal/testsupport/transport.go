package testsupport

import (
	"context"
	"errors"
	"sync"

	"courier/internal/store"
)

// ErrTransportClosed is returned by FakeTransport after Close.
var ErrTransportClosed = errors.New("fake transport closed")

// FakeTransport is an in-memory registry.Transport that records deliveries
// and probes.
type FakeTransport struct {
	mu         sync.Mutex
	delivered  []store.Message
	probes     int
	closed     bool
	closeCount int
	deliverErr error
	probeErr   error
}

// NewFakeTransport returns an open FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

// Deliver records msg unless the transport is closed or set to fail.
func (f *FakeTransport) Deliver(_ context.Context, msg store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrTransportClosed
	}
	if f.deliverErr != nil {
		return f.deliverErr
	}
	f.delivered = append(f.delivered, msg)
	return nil
}

// Probe counts a liveness probe.
func (f *FakeTransport) Probe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrTransportClosed
	}
	if f.probeErr != nil {
		return f.probeErr
	}
	f.probes++
	return nil
}

// Close marks the transport closed.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCount++
	return nil
}

// FailDeliveries makes subsequent Deliver calls return err.
func (f *FakeTransport) FailDeliveries(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliverErr = err
}

// FailProbes makes subsequent Probe calls return err.
func (f *FakeTransport) FailProbes(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeErr = err
}

// Delivered returns a copy of every delivered message.
func (f *FakeTransport) Delivered() []store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Message(nil), f.delivered...)
}

// Probes returns the number of successful probes.
func (f *FakeTransport) Probes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// Closed reports whether Close was called.
func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
