package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"courier/internal/metrics"
)

type fixedGauges struct{ endpoints, channels int }

func (f fixedGauges) LiveEndpointCount() int { return f.endpoints }
func (f fixedGauges) ChannelCount() int      { return f.channels }

func TestHandlerExposesCounters(t *testing.T) {
	m := metrics.New()
	m.Observe(fixedGauges{endpoints: 3, channels: 2})
	m.Published(metrics.ResultDelivered)
	m.Forward(metrics.ResultSent)
	m.Evicted(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, fragment := range []string{
		`courier_messages_published_total{outcome="delivered"} 1`,
		`courier_forwards_total{result="sent"} 1`,
		`courier_liveness_evictions_total 2`,
		`courier_live_endpoints 3`,
		`courier_subscribed_channels 2`,
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in exposition", fragment)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.Published(metrics.ResultForwarded)
	m.Delivery(metrics.ResultFailed)
	m.Claim(metrics.ResultTaken)
	m.Evicted(1)
	m.QueueDepth(4)
	m.Observe(fixedGauges{})
	if m.Registry() != nil {
		t.Fatal("expected nil registry")
	}
}

func TestClaimCounter(t *testing.T) {
	m := metrics.New()
	m.Claim(metrics.ResultClaimed)
	m.Claim(metrics.ResultTaken)
	m.Claim(metrics.ResultTaken)

	count, err := testutil.GatherAndCount(m.Registry(), "courier_ownership_claims_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two label series, got %d", count)
	}
}
