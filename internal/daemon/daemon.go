package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"courier/internal/api"
	"courier/internal/config"
	"courier/internal/forward"
	"courier/internal/liveness"
	"courier/internal/logging"
	"courier/internal/metrics"
	"courier/internal/ownership"
	"courier/internal/registry"
	"courier/internal/relay"
	"courier/internal/store"
	"courier/internal/transport"
)

// Daemon owns the relay's long-running pieces and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Metrics

	registry   *registry.Registry
	owners     *ownership.Manager
	relay      *relay.Service
	dispatcher *forward.Dispatcher
	monitor    *liveness.Monitor
	server     *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt atomic.Pointer[time.Time]

	addrMu    sync.Mutex
	addr      string
	ready     chan struct{}
	readyOnce sync.Once
}

// New wires the relay components around an open store.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	mt := metrics.New()
	reg := registry.New()
	mt.Observe(reg)

	dispatcher := forward.NewDispatcher(forward.New(cfg), forward.DispatcherConfig{
		Workers:        cfg.Forward.Workers,
		QueueSize:      cfg.Forward.QueueSize,
		RatePerSec:     cfg.Forward.RatePerSec,
		RequestTimeout: cfg.ForwardTimeout(),
	}, logger, mt)

	relayOpts := []relay.Option{relay.WithDispatcher(dispatcher), relay.WithMetrics(mt)}
	var owners *ownership.Manager
	if cfg.SlugMode() {
		var err error
		owners, err = ownership.New(st, reg, cfg.Relay.OwnerCacheSize, logger, ownership.WithMetrics(mt))
		if err != nil {
			return nil, fmt.Errorf("ownership manager: %w", err)
		}
		relayOpts = append(relayOpts, relay.WithOwnership(owners))
	}
	svc, err := relay.New(cfg, st, reg, logger, relayOpts...)
	if err != nil {
		return nil, fmt.Errorf("relay service: %w", err)
	}

	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		metrics:    mt,
		registry:   reg,
		owners:     owners,
		relay:      svc,
		dispatcher: dispatcher,
		monitor: liveness.New(reg, cfg.LivenessInterval(), logger,
			liveness.WithMetrics(mt), liveness.WithProbeTimeout(cfg.WriteTimeout())),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		ready:    make(chan struct{}),
	}
	d.server = newAPIServer(d, transport.NewHandler(cfg, reg, owners, logger), logger)
	return d, nil
}

// Run acquires the instance lock, starts the API server, the liveness
// monitor and the forward dispatcher, and blocks until ctx is cancelled or
// one of them fails.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another courier daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	listener, err := net.Listen("tcp", d.cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	d.addrMu.Lock()
	d.addr = listener.Addr().String()
	d.addrMu.Unlock()

	now := time.Now()
	d.startedAt.Store(&now)
	d.readyOnce.Do(func() { close(d.ready) })

	d.logger.Info("courier daemon started",
		logging.String("address", d.Addr()),
		logging.String("mode", d.cfg.Relay.Mode),
		logging.Bool("forward_enabled", d.dispatcher.Enabled()),
		logging.Duration("liveness_interval", d.monitor.Interval()),
		logging.String("lock", d.lockPath),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.server.serve(gctx, listener) })
	g.Go(func() error { return d.monitor.Run(gctx) })
	g.Go(func() error { return d.dispatcher.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		d.closeEndpoints()
		return nil
	})

	err = g.Wait()
	d.logger.Info("courier daemon stopped")
	return err
}

// Ready is closed once the API listener is bound.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the bound API address, empty before Run.
func (d *Daemon) Addr() string {
	d.addrMu.Lock()
	defer d.addrMu.Unlock()
	return d.addr
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.closeEndpoints()
	var err error
	if d.store != nil {
		err = multierr.Append(err, d.store.Close())
	}
	if d.lock != nil {
		err = multierr.Append(err, d.lock.Close())
	}
	return err
}

// Relay exposes the publish service.
func (d *Daemon) Relay() *relay.Service {
	return d.relay
}

// Registry exposes the live endpoint registry.
func (d *Daemon) Registry() *registry.Registry {
	return d.registry
}

// Metrics exposes the daemon's collectors.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		Mode:             d.cfg.Relay.Mode,
		LiveEndpoints:    d.registry.LiveEndpointCount(),
		Channels:         d.registry.ChannelCount(),
		ForwardEnabled:   d.dispatcher.Enabled(),
		LivenessInterval: d.monitor.Interval().String(),
		Store:            api.StoreStatus{Path: d.store.Path()},
		Endpoints:        api.FromEndpoints(d.registry.Endpoints()),
	}
	if started := d.startedAt.Load(); started != nil {
		status.StartedAt = api.FormatTime(*started)
	}
	health, err := d.store.CheckHealth(ctx)
	switch {
	case err != nil:
		status.Store.Problem = err.Error()
	case len(health.MissingTables) > 0:
		status.Store.Problem = "missing tables: " + strings.Join(health.MissingTables, ", ")
	case !health.IntegrityCheck:
		status.Store.Problem = "integrity check failed"
	default:
		status.Store.Healthy = true
	}
	status.Store.SchemaVersion = health.SchemaVersion

	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("store stats unavailable", logging.Error(err))
		return status
	}
	status.Store.Messages = stats.Messages
	status.Store.Channels = stats.Channels
	status.Store.OwnedChannels = stats.OwnedChannels
	return status
}

func (d *Daemon) closeEndpoints() {
	for _, h := range d.registry.DisconnectAll() {
		_ = h.Transport().Close()
	}
}
