package forward_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/forward"
	"courier/internal/metrics"
	"courier/internal/testsupport"
)

func TestDispatcherDeliversQueuedForward(t *testing.T) {
	rec := testsupport.NewRecordingForwarder(2)
	mt := metrics.New()
	d := forward.NewDispatcher(rec, forward.DispatcherConfig{Workers: 1, QueueSize: 4}, nil, mt)
	d.Start(context.Background())

	require.NoError(t, d.Enqueue("sale-alerts", sampleMessage()))

	select {
	case call := <-rec.Calls:
		assert.Equal(t, "sale-alerts", call.Channel)
		assert.Equal(t, "m-1", call.Message.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("forward was not dispatched")
	}

	d.Stop(context.Background())
	expected := `
# HELP courier_forwards_total Push-forward attempts, by result.
# TYPE courier_forwards_total counter
courier_forwards_total{result="sent"} 1
`
	require.NoError(t, testutil.GatherAndCompare(mt.Registry(), strings.NewReader(expected), "courier_forwards_total"))
}

func TestDispatcherDisabledWithNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := forward.NewDispatcher(forward.New(cfg), forward.DispatcherConfig{}, nil, nil)
	d.Start(context.Background())
	defer d.Stop(context.Background())

	assert.False(t, d.Enabled())
	assert.ErrorIs(t, d.Enqueue("alerts", sampleMessage()), forward.ErrDisabled)
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	rec := testsupport.NewRecordingForwarder(1)
	d := forward.NewDispatcher(rec, forward.DispatcherConfig{Workers: 1}, nil, nil)
	d.Start(context.Background())
	d.Stop(context.Background())

	assert.ErrorIs(t, d.Enqueue("alerts", sampleMessage()), forward.ErrStopped)
}

func TestDispatcherStopDrainsQueue(t *testing.T) {
	rec := testsupport.NewRecordingForwarder(1)
	d := forward.NewDispatcher(rec, forward.DispatcherConfig{Workers: 1, QueueSize: 8}, nil, nil)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue("alerts", sampleMessage()))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Stop(ctx)

	assert.Len(t, rec.Recorded(), 5)
}

func TestDispatcherFailureIsCountedNotReturned(t *testing.T) {
	rec := testsupport.NewRecordingForwarder(0)
	rec.Fail(errors.New("gateway down"))
	mt := metrics.New()
	d := forward.NewDispatcher(rec, forward.DispatcherConfig{Workers: 1}, nil, mt)
	d.Start(context.Background())

	require.NoError(t, d.Enqueue("alerts", sampleMessage()))
	d.Stop(context.Background())

	expected := `
# HELP courier_forwards_total Push-forward attempts, by result.
# TYPE courier_forwards_total counter
courier_forwards_total{result="failed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(mt.Registry(), strings.NewReader(expected), "courier_forwards_total"))
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	rec := testsupport.NewRecordingForwarder(1)
	d := forward.NewDispatcher(rec, forward.DispatcherConfig{Workers: 1, RequestTimeout: time.Second}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		return d.Enqueue("alerts", sampleMessage()) == nil
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.ErrorIs(t, d.Enqueue("alerts", sampleMessage()), forward.ErrStopped)
}
