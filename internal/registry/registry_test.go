package registry_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/registry"
	"courier/internal/services"
	"courier/internal/testsupport"
)

func TestConnectSubscribeAndSnapshot(t *testing.T) {
	reg := registry.New()
	a, prior := reg.Connect("dev-A", testsupport.NewFakeTransport())
	require.Nil(t, prior)
	b, _ := reg.Connect("dev-B", testsupport.NewFakeTransport())

	require.NoError(t, reg.Subscribe(a, "alerts"))
	require.NoError(t, reg.Subscribe(a, "alerts"), "subscribe must be idempotent")
	require.NoError(t, reg.Subscribe(b, "alerts"))
	require.NoError(t, reg.Subscribe(b, "news"))

	subs := reg.SubscribersOf("alerts")
	require.Len(t, subs, 2)
	assert.Equal(t, "dev-A", subs[0].Identity())
	assert.Equal(t, "dev-B", subs[1].Identity())
	assert.Equal(t, 2, reg.LiveEndpointCount())
	assert.Equal(t, 2, reg.ChannelCount())
	assert.Equal(t, []string{"alerts", "news"}, reg.ChannelsOf(b))
	assert.Empty(t, reg.SubscribersOf("missing"))
}

func TestDisconnectRemovesFromEverySet(t *testing.T) {
	reg := registry.New()
	a, _ := reg.Connect("dev-A", testsupport.NewFakeTransport())
	require.NoError(t, reg.Subscribe(a, "alerts"))
	require.NoError(t, reg.Subscribe(a, "news"))

	assert.True(t, reg.Disconnect(a))
	assert.False(t, reg.Disconnect(a), "disconnect must be idempotent")
	assert.Empty(t, reg.SubscribersOf("alerts"))
	assert.Empty(t, reg.SubscribersOf("news"))
	assert.Equal(t, 0, reg.ChannelCount())
	_, ok := reg.Lookup("dev-A")
	assert.False(t, ok)
	assert.Equal(t, registry.StateEvicted, reg.StateOf(a))
}

func TestSubscribeUnknownEndpoint(t *testing.T) {
	reg := registry.New()
	a, _ := reg.Connect("dev-A", testsupport.NewFakeTransport())
	reg.Disconnect(a)

	err := reg.Subscribe(a, "alerts")
	require.ErrorIs(t, err, services.ErrUnknownEndpoint)
	assert.Empty(t, reg.SubscribersOf("alerts"))
}

func TestReconnectSupersedesPriorHandle(t *testing.T) {
	reg := registry.New()
	first, _ := reg.Connect("dev-A", testsupport.NewFakeTransport())
	require.NoError(t, reg.Subscribe(first, "alerts"))

	second, prior := reg.Connect("dev-A", testsupport.NewFakeTransport())
	require.Same(t, first, prior)
	assert.False(t, reg.IsCurrent(first))
	assert.Empty(t, reg.SubscribersOf("alerts"), "superseded subscriptions are dropped")

	require.NoError(t, reg.Subscribe(second, "alerts"))
	assert.False(t, reg.Disconnect(first), "stale disconnect must not remove the replacement")
	got, ok := reg.Lookup("dev-A")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, reg.SubscribersOf("alerts"), 1)
}

func TestUnsubscribe(t *testing.T) {
	reg := registry.New()
	a, _ := reg.Connect("dev-A", testsupport.NewFakeTransport())
	require.NoError(t, reg.Subscribe(a, "alerts"))
	require.NoError(t, reg.Subscribe(a, "news"))

	assert.True(t, reg.Unsubscribe(a, "alerts"))
	assert.False(t, reg.Unsubscribe(a, "alerts"))
	assert.True(t, reg.UnsubscribeIdentity("dev-A", "news"))
	assert.False(t, reg.UnsubscribeIdentity("dev-Z", "news"))
	assert.Empty(t, reg.ChannelsOf(a))
	assert.Equal(t, 1, reg.LiveEndpointCount())
}

func TestSweepProbesThenEvicts(t *testing.T) {
	mock := clock.NewMock()
	reg := registry.New(registry.WithClock(mock))
	a, _ := reg.Connect("dev-A", testsupport.NewFakeTransport())
	b, _ := reg.Connect("dev-B", testsupport.NewFakeTransport())
	require.NoError(t, reg.Subscribe(a, "alerts"))
	require.NoError(t, reg.Subscribe(b, "alerts"))

	probe, evict := reg.Sweep()
	assert.Len(t, probe, 2)
	assert.Empty(t, evict)
	assert.Equal(t, registry.StateAwaitingAck, reg.StateOf(a))

	require.True(t, reg.Ack(b))
	assert.Equal(t, registry.StateAlive, reg.StateOf(b))

	probe, evict = reg.Sweep()
	require.Len(t, evict, 1)
	assert.Same(t, a, evict[0])
	require.Len(t, probe, 1)
	assert.Same(t, b, probe[0])

	subs := reg.SubscribersOf("alerts")
	require.Len(t, subs, 1)
	assert.Same(t, b, subs[0])
	assert.False(t, reg.Ack(a), "ack after eviction is ignored")
	assert.False(t, reg.Disconnect(a), "evicting twice is a no-op")
}

func TestEndpointsSnapshot(t *testing.T) {
	mock := clock.NewMock()
	reg := registry.New(registry.WithClock(mock))
	a, _ := reg.Connect("dev-A", testsupport.NewFakeTransport())
	require.NoError(t, reg.Subscribe(a, "alerts"))

	infos := reg.Endpoints()
	require.Len(t, infos, 1)
	assert.Equal(t, "dev-A", infos[0].Identity)
	assert.Equal(t, registry.StateAlive, infos[0].State)
	assert.Equal(t, []string{"alerts"}, infos[0].Channels)
	assert.Equal(t, mock.Now(), infos[0].ConnectedAt)
}

func TestConcurrentConnectDisconnectKeepsIndexConsistent(t *testing.T) {
	reg := registry.New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, _ := reg.Connect(fmt.Sprintf("dev-%d", i%4), testsupport.NewFakeTransport())
			_ = reg.Subscribe(h, "alerts")
			_ = reg.SubscribersOf("alerts")
			if i%2 == 0 {
				reg.Disconnect(h)
			}
		}(i)
	}
	wg.Wait()

	for _, h := range reg.SubscribersOf("alerts") {
		got, ok := reg.Lookup(h.Identity())
		require.True(t, ok, "subscriber %s must be live", h.Identity())
		assert.Same(t, got, h)
	}
	assert.LessOrEqual(t, reg.LiveEndpointCount(), 4)
}

func TestDisconnectAllEmptiesRegistry(t *testing.T) {
	reg := registry.New()
	a, _ := reg.Connect("dev-A", testsupport.NewFakeTransport())
	b, _ := reg.Connect("dev-B", testsupport.NewFakeTransport())
	require.NoError(t, reg.Subscribe(a, "alerts"))
	require.NoError(t, reg.Subscribe(b, "alerts"))

	removed := reg.DisconnectAll()
	assert.Len(t, removed, 2)
	assert.Equal(t, 0, reg.LiveEndpointCount())
	assert.Equal(t, 0, reg.ChannelCount())
	assert.False(t, reg.Disconnect(a), "already removed")
}
