package ownership

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"courier/internal/logging"
	"courier/internal/metrics"
	"courier/internal/registry"
	"courier/internal/services"
	"courier/internal/store"
)

const (
	defaultCacheSize = 1024
	component        = "ownership"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9_-]{3,50}$`)

// ValidSlug reports whether name is an acceptable slug.
func ValidSlug(name string) bool {
	return slugPattern.MatchString(name)
}

// Store is the persistence the manager needs. *store.Store satisfies it.
type Store interface {
	InsertOwnership(ctx context.Context, channel, identity string, at time.Time) error
	LookupOwner(ctx context.Context, channel string) (string, bool, error)
	DeleteOwnership(ctx context.Context, channel, identity string) (bool, error)
	OwnedBy(ctx context.Context, identity string) ([]string, error)
}

// Manager arbitrates exclusive slug ownership. The persisted uniqueness
// constraint is the source of truth; the owner cache only holds owners that
// were read or written after the last claim or release.
type Manager struct {
	store    Store
	registry *registry.Registry
	cache    *lru.Cache[string, string]
	lookups  singleflight.Group
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// mu orders cache writes against gen. gen advances on every successful
	// claim or release; a lookup that started under an older gen never
	// populates the cache.
	mu  sync.Mutex
	gen uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects the time source for claim timestamps.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMetrics records claim outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// New builds a manager with an owner cache of cacheSize entries.
func New(st Store, reg *registry.Registry, cacheSize int, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, errors.New("ownership manager requires a store")
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		store:    st,
		registry: reg,
		cache:    cache,
		clock:    clock.New(),
		logger:   logging.NewComponentLogger(logger, component),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Claim binds name to identity. Claiming a slug the identity already owns
// succeeds without change; a slug owned by anyone else fails with
// ErrAlreadyTaken and leaves all state untouched.
func (m *Manager) Claim(ctx context.Context, name, identity string) error {
	if err := validate(name, identity, "claim"); err != nil {
		m.metrics.Claim(metrics.ResultInvalid)
		return err
	}

	owner, owned, err := m.OwnerOf(ctx, name)
	if err != nil {
		return err
	}
	if owned {
		if owner == identity {
			m.attach(identity, name)
			m.metrics.Claim(metrics.ResultClaimed)
			return nil
		}
		m.metrics.Claim(metrics.ResultTaken)
		return services.Wrap(services.ErrAlreadyTaken, component, "claim", "channel="+name, nil)
	}

	insertErr := m.store.InsertOwnership(ctx, name, identity, m.clock.Now())
	if insertErr == nil {
		m.recordClaim(name, identity)
		m.attach(identity, name)
		m.metrics.Claim(metrics.ResultClaimed)
		m.logger.Info("channel claimed", logging.Channel(name), logging.Endpoint(identity))
		return nil
	}

	if !errors.Is(insertErr, store.ErrConflict) {
		return services.Wrap(services.ErrPersistence, component, "claim", "channel="+name, insertErr)
	}

	// Lost the race. The winner may be this same identity on another connection.
	owner, owned, err = m.OwnerOf(ctx, name)
	if err != nil {
		return err
	}
	if owned && owner == identity {
		m.attach(identity, name)
		m.metrics.Claim(metrics.ResultClaimed)
		return nil
	}
	m.metrics.Claim(metrics.ResultTaken)
	m.logger.Debug("claim lost to concurrent owner", logging.Channel(name), logging.Endpoint(identity))
	return services.Wrap(services.ErrAlreadyTaken, component, "claim", "channel="+name, nil)
}

// Release removes the ownership record when identity is the owner and drops
// the identity's live subscription to name.
func (m *Manager) Release(ctx context.Context, name, identity string) (bool, error) {
	if err := validate(name, identity, "release"); err != nil {
		return false, err
	}
	removed, err := m.store.DeleteOwnership(ctx, name, identity)
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, component, "release", "channel="+name, err)
	}
	if !removed {
		return false, nil
	}
	m.recordRelease(name, identity)
	if m.registry != nil {
		m.registry.UnsubscribeIdentity(identity, name)
	}
	m.logger.Info("channel released", logging.Channel(name), logging.Endpoint(identity))
	return true, nil
}

// OwnerOf returns the owner of name. Concurrent misses for the same name
// share one store lookup unless a claim or release lands in between.
func (m *Manager) OwnerOf(ctx context.Context, name string) (string, bool, error) {
	if owner, ok := m.cache.Get(name); ok {
		return owner, true, nil
	}
	gen := m.generation()
	key := name + "@" + strconv.FormatUint(gen, 10)
	v, err, _ := m.lookups.Do(key, func() (any, error) {
		owner, ok, err := m.store.LookupOwner(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return "", nil
		}
		m.cacheIfCurrent(gen, name, owner)
		return owner, nil
	})
	if err != nil {
		return "", false, services.Wrap(services.ErrPersistence, component, "owner lookup", "channel="+name, err)
	}
	owner := v.(string)
	return owner, owner != "", nil
}

// Owned lists the slugs held by identity.
func (m *Manager) Owned(ctx context.Context, identity string) ([]string, error) {
	names, err := m.store.OwnedBy(ctx, identity)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, component, "owned", "identity="+identity, err)
	}
	return names, nil
}

// Attach subscribes the identity's live handle to every slug it owns.
func (m *Manager) Attach(ctx context.Context, h *registry.Handle) ([]string, error) {
	gen := m.generation()
	names, err := m.Owned(ctx, h.Identity())
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		m.cacheIfCurrent(gen, name, h.Identity())
		if m.registry == nil {
			continue
		}
		if err := m.registry.Subscribe(h, name); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func (m *Manager) attach(identity, name string) {
	if m.registry == nil {
		return
	}
	if h, ok := m.registry.Lookup(identity); ok {
		_ = m.registry.Subscribe(h, name)
	}
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// cacheIfCurrent caches owner for name only if no claim or release has
// completed since gen was read.
func (m *Manager) cacheIfCurrent(gen uint64, name, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		m.cache.Add(name, owner)
	}
}

func (m *Manager) recordClaim(name, identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.cache.Add(name, identity)
}

// recordRelease drops the cached owner only if it still names identity, so
// a later claimer cached in the meantime survives.
func (m *Manager) recordRelease(name, identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if cached, ok := m.cache.Peek(name); ok && cached == identity {
		m.cache.Remove(name)
	}
}

func validate(name, identity, op string) error {
	if !ValidSlug(name) {
		return services.Wrap(services.ErrInvalidFormat, component, op,
			"slug must match [a-z0-9_-]{3,50}: "+name, nil)
	}
	if strings.TrimSpace(identity) == "" {
		return services.Wrap(services.ErrInvalidFormat, component, op, "identity is required", nil)
	}
	return nil
}
