package relay_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/config"
	"courier/internal/registry"
	"courier/internal/relay"
	"courier/internal/services"
	"courier/internal/store"
	"courier/internal/testsupport"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"all", 0},
		{"ALL", 0},
		{"1700000000", 1700000000},
		{"30s", now.Add(-30 * time.Second).Unix()},
		{"10m", now.Add(-10 * time.Minute).Unix()},
		{"1h", now.Add(-time.Hour).Unix()},
		{"2d", now.Add(-48 * time.Hour).Unix()},
		{"9223372036s", 0},
		{"106000d", 0},
	}
	for _, tc := range cases {
		got, err := relay.ParseSince(tc.in, now)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"yesterday", "1w", "-5", "h1", "107000d", "200000d", "9223372037s", "99999999999999999999s"} {
		_, err := relay.ParseSince(bad, now)
		assert.ErrorIs(t, err, services.ErrInvalidFormat, bad)
	}
}

func TestListSinceOneHourWindow(t *testing.T) {
	e := newEnv(t, config.ModeTopic)
	ctx := context.Background()
	now := e.clock.Now()

	for i, age := range []time.Duration{3 * time.Hour, 90 * time.Minute, 45 * time.Minute, 5 * time.Minute} {
		testsupport.InsertMessage(t, e.store, store.Message{
			ID:       fmt.Sprintf("m-%d", i),
			Channel:  "alerts",
			Body:     fmt.Sprintf("age %s", age),
			Priority: 3,
			Time:     now.Add(-age).Unix(),
		})
	}

	recent, err := e.relay.ListSince(ctx, "alerts", "1h")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m-2", recent[0].ID)
	assert.Equal(t, "m-3", recent[1].ID)

	all, err := e.relay.ListSince(ctx, "alerts", "all")
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Time, all[i].Time)
	}
}

func TestListSinceCapsAtHistoryLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistoryLimit(3))
	st := testsupport.MustOpenStore(t, cfg)
	svc, err := relay.New(cfg, st, registry.New(), nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		testsupport.InsertMessage(t, st, store.Message{
			ID:       fmt.Sprintf("m-%d", i),
			Channel:  "alerts",
			Body:     "x",
			Priority: 3,
			Time:     int64(1700000000 + i),
		})
	}

	msgs, err := svc.ListSince(context.Background(), "alerts", "all")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m-2", msgs[0].ID, "cap keeps the newest messages")
	assert.Equal(t, "m-4", msgs[2].ID)
	assert.Equal(t, 3, svc.HistoryLimit())
}

func TestDeleteAll(t *testing.T) {
	e := newEnv(t, config.ModeTopic)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.relay.Publish(ctx, "alerts", relay.Draft{Body: "x"})
		require.NoError(t, err)
	}
	_, err := e.relay.Publish(ctx, "other", relay.Draft{Body: "keep"})
	require.NoError(t, err)

	removed, err := e.relay.DeleteAll(ctx, "alerts")
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	left, err := e.relay.ListSince(ctx, "alerts", "all")
	require.NoError(t, err)
	assert.Empty(t, left)

	other, err := e.relay.ListSince(ctx, "other", "all")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
