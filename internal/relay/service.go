package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/metrics"
	"courier/internal/ownership"
	"courier/internal/registry"
	"courier/internal/services"
	"courier/internal/store"
)

const component = "relay"

// Store is the persistence the relay needs. *store.Store satisfies it.
type Store interface {
	InsertMessage(ctx context.Context, msg store.Message) error
	QueryMessages(ctx context.Context, channel string, since int64, limit int) ([]store.Message, error)
	DeleteMessages(ctx context.Context, channel string) (int64, error)
	TouchChannel(ctx context.Context, channel string, at time.Time) error
}

// Dispatcher accepts best-effort push forwards. *forward.Dispatcher satisfies it.
type Dispatcher interface {
	Enabled() bool
	Enqueue(channel string, msg store.Message) error
}

// Receipt reports the outcome of one publish.
type Receipt struct {
	Message   store.Message
	Delivered int
	Forwarded bool
}

// Service decides, per publish, between live delivery and push forwarding.
type Service struct {
	mode         string
	historyLimit int
	writeTimeout time.Duration

	store      Store
	registry   *registry.Registry
	owners     *ownership.Manager
	dispatcher Dispatcher
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithOwnership routes slug-mode publishes through m.
func WithOwnership(m *ownership.Manager) Option {
	return func(s *Service) { s.owners = m }
}

// WithDispatcher enables push forwarding when no live endpoint is reached.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithClock injects the time source for message timestamps and windows.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics records publish outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = mt }
}

// New builds a relay service. Slug mode requires WithOwnership.
func New(cfg *config.Config, st Store, reg *registry.Registry, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("relay requires configuration")
	}
	if st == nil || reg == nil {
		return nil, errors.New("relay requires a store and a registry")
	}
	limit := cfg.Relay.HistoryLimit
	if limit <= 0 || limit > config.MaxHistoryLimit {
		limit = config.MaxHistoryLimit
	}
	s := &Service{
		mode:         cfg.Relay.Mode,
		historyLimit: limit,
		writeTimeout: cfg.WriteTimeout(),
		store:        st,
		registry:     reg,
		clock:        clock.New(),
		logger:       logging.NewComponentLogger(logger, component),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = 10 * time.Second
	}
	if s.mode == config.ModeSlug && s.owners == nil {
		return nil, errors.New("slug mode requires an ownership manager")
	}
	return s, nil
}

// Mode returns the routing variant.
func (s *Service) Mode() string {
	return s.mode
}

// ForwardEnabled reports whether unreached publishes are pushed to a gateway.
func (s *Service) ForwardEnabled() bool {
	return s.dispatcher != nil && s.dispatcher.Enabled()
}

// Publish persists a message and delivers it to the channel's live endpoints,
// or hands it to the push forwarder when none was reached. Never both.
func (s *Service) Publish(ctx context.Context, channel string, draft Draft) (Receipt, error) {
	started := s.clock.Now()
	defer func() { s.metrics.PublishDuration(s.clock.Since(started)) }()

	if err := s.validateChannel(channel, "publish"); err != nil {
		s.metrics.Published(metrics.ResultInvalid)
		return Receipt{}, err
	}
	draft, err := normalizeDraft(draft)
	if err != nil {
		s.metrics.Published(metrics.ResultInvalid)
		return Receipt{}, err
	}

	owner, err := s.resolveOwner(ctx, channel)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.metrics.Published(metrics.ResultNotFound)
		}
		return Receipt{}, err
	}

	now := s.clock.Now()
	msg := store.Message{
		ID:       uuid.NewString(),
		Channel:  channel,
		Title:    draft.Title,
		Body:     draft.Body,
		Priority: draft.Priority,
		Time:     now.Unix(),
	}
	logger := s.logger.With(logging.Channel(channel), logging.MessageID(msg.ID))

	if err := s.store.InsertMessage(ctx, msg); err != nil {
		s.metrics.Published(metrics.ResultFailed)
		logging.ErrorWithContext(logger, "message persistence failed", "publish_persist_failed",
			logging.String(logging.FieldErrorHint, "check data_dir permissions and disk space"),
			logging.Error(err),
		)
		return Receipt{}, services.Wrap(services.ErrPersistence, component, "publish", "channel="+channel, err)
	}
	if owner != "" {
		if err := s.store.TouchChannel(ctx, channel, now); err != nil {
			logger.Debug("touch channel failed", logging.Error(err))
		}
	}

	receipt := Receipt{Message: msg}
	receipt.Delivered = s.deliver(ctx, logger, s.targets(channel, owner), msg)
	if receipt.Delivered > 0 {
		s.metrics.Published(metrics.ResultDelivered)
		logger.Debug("message delivered live", logging.Int("delivered", receipt.Delivered))
		return receipt, nil
	}

	receipt.Forwarded = s.forward(logger, channel, msg)
	if receipt.Forwarded {
		s.metrics.Published(metrics.ResultForwarded)
	} else {
		s.metrics.Published(metrics.ResultSkipped)
	}
	return receipt, nil
}

// resolveOwner returns the slug owner in slug mode and "" in topic mode.
func (s *Service) resolveOwner(ctx context.Context, channel string) (string, error) {
	if s.mode != config.ModeSlug {
		return "", nil
	}
	owner, ok, err := s.owners.OwnerOf(ctx, channel)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", services.Wrap(services.ErrNotFound, component, "publish", "no owner for channel="+channel, nil)
	}
	return owner, nil
}

// targets snapshots the live handles for one publish.
func (s *Service) targets(channel, owner string) []*registry.Handle {
	if owner == "" {
		return s.registry.SubscribersOf(channel)
	}
	h, ok := s.registry.Lookup(owner)
	if !ok {
		return nil
	}
	return []*registry.Handle{h}
}

func (s *Service) deliver(ctx context.Context, logger *slog.Logger, targets []*registry.Handle, msg store.Message) int {
	delivered := 0
	for _, h := range targets {
		sendCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		err := h.Transport().Deliver(sendCtx, msg)
		cancel()
		if err == nil {
			delivered++
			s.metrics.Delivery(metrics.ResultDelivered)
			continue
		}

		s.metrics.Delivery(metrics.ResultFailed)
		s.registry.Disconnect(h)
		_ = h.Transport().Close()
		unreachable := services.Wrap(services.ErrUnreachable, component, "deliver", "endpoint="+h.Identity(), err)
		logging.WarnWithContext(logger, "live delivery failed; endpoint disconnected", "delivery_failed",
			logging.Endpoint(h.Identity()),
			logging.String(logging.FieldErrorHint, "endpoint will reconnect or be reached by push forward"),
			logging.Error(unreachable),
		)
	}
	return delivered
}

func (s *Service) forward(logger *slog.Logger, channel string, msg store.Message) bool {
	if s.dispatcher == nil {
		return false
	}
	if err := s.dispatcher.Enqueue(channel, msg); err != nil {
		logger.Debug("push forward not queued", logging.Error(err))
		return false
	}
	return true
}

func (s *Service) validateChannel(channel, op string) error {
	return validateChannel(s.mode, channel, op)
}
