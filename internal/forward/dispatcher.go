package forward

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"courier/internal/logging"
	"courier/internal/metrics"
	"courier/internal/store"
)

var (
	ErrDisabled  = errors.New("forwarding disabled")
	ErrQueueFull = errors.New("forward queue full")
	ErrStopped   = errors.New("forward dispatcher stopped")
)

// DispatcherConfig tunes the async pipeline.
type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	RatePerSec     float64
	RequestTimeout time.Duration
}

type job struct {
	channel string
	msg     store.Message
}

// Dispatcher runs forwards on background workers: bounded queue, worker
// pool, token-bucket rate limit. Outcomes surface only through logs and
// metrics. It is safe for concurrent use.
type Dispatcher struct {
	mu sync.Mutex

	forwarder Forwarder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cfg       DispatcherConfig
	limiter   *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue     chan job
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

// NewDispatcher wraps f. Call Start before Enqueue.
func NewDispatcher(f Forwarder, cfg DispatcherConfig, logger *slog.Logger, mt *metrics.Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return &Dispatcher{
		forwarder: f,
		logger:    logging.NewComponentLogger(logger, "forward"),
		metrics:   mt,
		cfg:       cfg,
		limiter:   limiter,
	}
}

// Enabled reports whether forwards reach a real gateway.
func (d *Dispatcher) Enabled() bool {
	return d != nil && Enabled(d.forwarder)
}

// Start launches the worker pool. It is a no-op when already running.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.queue != nil {
		d.mu.Unlock()
		return
	}
	d.queue = make(chan job, d.cfg.QueueSize)
	d.accepting = true
	d.runCtx, d.runCancel = context.WithCancel(ctx)
	workers := d.cfg.Workers
	q := d.queue
	runCtx := d.runCtx
	d.mu.Unlock()

	for i := 0; i < workers; i++ {
		i := i
		d.workerWG.Add(1)
		go func() {
			defer d.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("panic in forward worker",
						logging.Int("worker", i),
						logging.Any("panic", r),
						logging.String("stack", string(debug.Stack())),
					)
				}
			}()
			d.workerLoop(runCtx, q)
		}()
	}
}

// Stop halts intake and drains queued jobs until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	q := d.queue
	cancel := d.runCancel
	if q == nil {
		d.mu.Unlock()
		return
	}
	d.accepting = false
	d.mu.Unlock()

	// In-flight enqueues finish before the queue is closed.
	d.sendWG.Wait()
	close(q)

	done := make(chan struct{})
	go func() {
		d.workerWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		cancel()
		<-done
	case <-done:
		cancel()
	}

	d.mu.Lock()
	d.queue = nil
	d.runCtx = nil
	d.runCancel = nil
	d.mu.Unlock()
	d.metrics.QueueDepth(0)
}

// Run starts the pool, blocks until ctx is done, then drains for up to the
// request timeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Start(context.WithoutCancel(ctx))
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), d.cfg.RequestTimeout)
	defer cancel()
	d.Stop(stopCtx)
	return nil
}

// Enqueue hands msg to the pipeline without blocking.
func (d *Dispatcher) Enqueue(channel string, msg store.Message) error {
	if !d.Enabled() {
		d.metrics.Forward(metrics.ResultSkipped)
		return ErrDisabled
	}
	d.mu.Lock()
	if !d.accepting || d.queue == nil {
		d.mu.Unlock()
		return ErrStopped
	}
	q := d.queue
	d.sendWG.Add(1)
	d.mu.Unlock()
	defer d.sendWG.Done()

	select {
	case q <- job{channel: channel, msg: msg}:
		d.metrics.QueueDepth(len(q))
		return nil
	default:
		d.metrics.Forward(metrics.ResultDropped)
		logging.WarnWithContext(d.logger, "forward queue full; message dropped", "forward_queue_full",
			logging.Channel(channel),
			logging.MessageID(msg.ID),
			logging.String(logging.FieldErrorHint, "raise forward.queue_size or forward.rate_per_sec"),
			logging.String(logging.FieldImpact, "message persisted but not pushed"),
		)
		return ErrQueueFull
	}
}

func (d *Dispatcher) workerLoop(runCtx context.Context, q <-chan job) {
	for j := range q {
		d.metrics.QueueDepth(len(q))
		if err := d.limiter.Wait(runCtx); err != nil {
			return
		}
		d.send(runCtx, j)
	}
}

func (d *Dispatcher) send(runCtx context.Context, j job) {
	callCtx, cancel := context.WithTimeout(runCtx, d.cfg.RequestTimeout)
	defer cancel()

	result, err := d.forwarder.Forward(callCtx, j.channel, j.msg)
	if err != nil {
		d.metrics.Forward(metrics.ResultFailed)
		logging.WarnWithContext(d.logger, "push forward failed", "forward_failed",
			logging.Channel(j.channel),
			logging.MessageID(j.msg.ID),
			logging.String(logging.FieldErrorHint, "check forward.gateway_url and gateway availability"),
			logging.String(logging.FieldImpact, "message persisted but not pushed"),
			logging.Error(err),
		)
		return
	}
	if result.Skipped {
		d.metrics.Forward(metrics.ResultSkipped)
		return
	}
	d.metrics.Forward(metrics.ResultSent)
	d.logger.Debug("message forwarded",
		logging.Channel(j.channel),
		logging.MessageID(j.msg.ID),
		logging.Int("sent", result.Sent),
	)
}
