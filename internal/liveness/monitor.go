package liveness

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"courier/internal/logging"
	"courier/internal/metrics"
	"courier/internal/registry"
)

// DefaultInterval is the probe/evict period when none is configured.
const DefaultInterval = 30 * time.Second

// TickResult summarizes one liveness tick.
type TickResult struct {
	Probed      int
	ProbeFailed int
	Evicted     int
}

// Monitor periodically probes live endpoints and evicts those that missed the
// previous probe.
type Monitor struct {
	registry     *registry.Registry
	interval     time.Duration
	probeTimeout time.Duration
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock injects the tick source.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMetrics records probes and evictions.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// WithProbeTimeout bounds each probe write.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// New creates a monitor over reg ticking every interval.
func New(reg *registry.Registry, interval time.Duration, logger *slog.Logger, opts ...Option) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Monitor{
		registry:     reg,
		interval:     interval,
		probeTimeout: 10 * time.Second,
		clock:        clock.New(),
		logger:       logging.NewComponentLogger(logger, "liveness"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the tick period.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	m.logger.Debug("liveness monitor started", logging.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("liveness monitor stopped")
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one probe/evict cycle. The registry lock is held only while
// sweeping; probes and transport closes happen after it is released.
func (m *Monitor) Tick(ctx context.Context) TickResult {
	probe, evict := m.registry.Sweep()
	result := TickResult{Evicted: len(evict)}

	for _, h := range evict {
		if err := h.Transport().Close(); err != nil {
			m.logger.Debug("close evicted transport", logging.Endpoint(h.Identity()), logging.Error(err))
		}
		m.registry.Disconnect(h)
		m.logger.Info("endpoint evicted",
			logging.Endpoint(h.Identity()),
			logging.String(logging.FieldEventType, "endpoint_evicted"),
		)
	}
	m.metrics.Evicted(len(evict))

	for _, h := range probe {
		probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		err := h.Transport().Probe(probeCtx)
		cancel()
		if err == nil {
			result.Probed++
			m.metrics.Probe(metrics.ResultOK)
			continue
		}
		result.ProbeFailed++
		m.metrics.Probe(metrics.ResultFailed)
		if m.registry.Disconnect(h) {
			logging.WarnWithContext(m.logger, "probe write failed; endpoint disconnected", "probe_failed",
				logging.Endpoint(h.Identity()),
				logging.String(logging.FieldErrorHint, "the connection was closed or the peer stopped reading"),
				logging.Error(err),
			)
		}
		_ = h.Transport().Close()
	}

	if result.Evicted > 0 || result.ProbeFailed > 0 {
		m.logger.Debug("liveness tick",
			logging.Int("probed", result.Probed),
			logging.Int("probe_failed", result.ProbeFailed),
			logging.Int("evicted", result.Evicted),
		)
	}
	return result
}
