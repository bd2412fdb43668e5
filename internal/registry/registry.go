package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"courier/internal/services"
	"courier/internal/store"
)

// State is the liveness state of a registered endpoint.
type State int

const (
	StateAlive State = iota
	StateAwaitingAck
	StateEvicted
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateAwaitingAck:
		return "awaiting_ack"
	case StateEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Transport is the connection side of an endpoint. Implementations must be
// safe for concurrent use and must fail fast once closed.
type Transport interface {
	Deliver(ctx context.Context, msg store.Message) error
	Probe(ctx context.Context) error
	Close() error
}

// Handle is one registration of an endpoint identity. A handle outlives its
// registration; after Disconnect or supersession it is inert.
type Handle struct {
	identity    string
	transport   Transport
	connectedAt time.Time

	// guarded by Registry.mu
	state    State
	channels map[string]struct{}
	lastAck  time.Time
}

// Identity returns the endpoint identity the handle was registered under.
func (h *Handle) Identity() string { return h.identity }

// Transport returns the connection backing the handle.
func (h *Handle) Transport() Transport { return h.transport }

// ConnectedAt returns the registration time.
func (h *Handle) ConnectedAt() time.Time { return h.connectedAt }

// EndpointInfo is a point-in-time view of a live endpoint.
type EndpointInfo struct {
	Identity    string
	State       State
	Channels    []string
	ConnectedAt time.Time
	LastAck     time.Time
}

// Registry maps endpoint identities to live handles and channel names to
// subscriber sets. Every mutation is serialized by a single lock and no I/O
// happens while it is held.
type Registry struct {
	mu          sync.RWMutex
	live        map[string]*Handle
	subscribers map[string]map[*Handle]struct{}
	clock       clock.Clock
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock injects the time source used for connect and ack timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		live:        make(map[string]*Handle),
		subscribers: make(map[string]map[*Handle]struct{}),
		clock:       clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers a live endpoint. When the identity is already registered
// the prior handle is replaced and returned so the caller can close its
// transport; the replaced handle loses all of its subscriptions.
func (r *Registry) Connect(identity string, transport Transport) (*Handle, *Handle) {
	now := r.clock.Now()
	h := &Handle{
		identity:    identity,
		transport:   transport,
		connectedAt: now,
		state:       StateAlive,
		channels:    make(map[string]struct{}),
		lastAck:     now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prior := r.live[identity]
	if prior != nil {
		r.removeLocked(prior)
	}
	r.live[identity] = h
	return h, prior
}

// Subscribe adds h to channel's subscriber set. It is idempotent and fails
// with ErrUnknownEndpoint when h is not the current registration.
func (r *Registry) Subscribe(h *Handle, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.currentLocked(h) {
		return services.Wrap(services.ErrUnknownEndpoint, "registry", "subscribe", "identity="+identityOf(h), nil)
	}
	set := r.subscribers[channel]
	if set == nil {
		set = make(map[*Handle]struct{})
		r.subscribers[channel] = set
	}
	set[h] = struct{}{}
	h.channels[channel] = struct{}{}
	return nil
}

// Unsubscribe removes h from channel. It reports whether a subscription existed.
func (r *Registry) Unsubscribe(h *Handle, channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		return false
	}
	return r.unsubscribeLocked(h, channel)
}

// UnsubscribeIdentity drops the subscription between the identity's current
// handle and channel, if any.
func (r *Registry) UnsubscribeIdentity(identity, channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.live[identity]
	if h == nil {
		return false
	}
	return r.unsubscribeLocked(h, channel)
}

// Disconnect removes h from every subscriber set and the live index. It is
// idempotent and never removes a handle that superseded h.
func (r *Registry) Disconnect(h *Handle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.currentLocked(h) {
		return false
	}
	r.removeLocked(h)
	return true
}

// SubscribersOf returns a snapshot of the live subscribers of channel.
func (r *Registry) SubscribersOf(channel string) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.subscribers[channel]
	out := make([]*Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].identity < out[j].identity })
	return out
}

// Lookup returns the live handle for identity.
func (r *Registry) Lookup(identity string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.live[identity]
	return h, ok
}

// IsCurrent reports whether h is still the live registration for its identity.
func (r *Registry) IsCurrent(h *Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentLocked(h)
}

// StateOf returns the liveness state of h. Handles no longer registered are
// reported as evicted.
func (r *Registry) StateOf(h *Handle) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h == nil {
		return StateEvicted
	}
	return h.state
}

// ChannelsOf returns the channels h is subscribed to, sorted.
func (r *Registry) ChannelsOf(h *Handle) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h == nil {
		return nil
	}
	return sortedKeys(h.channels)
}

// LiveEndpointCount returns the number of registered endpoints.
func (r *Registry) LiveEndpointCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// ChannelCount returns the number of channels with at least one subscriber.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Endpoints returns a snapshot of every live endpoint, ordered by identity.
func (r *Registry) Endpoints() []EndpointInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EndpointInfo, 0, len(r.live))
	for _, h := range r.live {
		out = append(out, EndpointInfo{
			Identity:    h.identity,
			State:       h.state,
			Channels:    sortedKeys(h.channels),
			ConnectedAt: h.connectedAt,
			LastAck:     h.lastAck,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Ack records a probe acknowledgement for h, moving it back to alive.
func (r *Registry) Ack(h *Handle) bool {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.currentLocked(h) {
		return false
	}
	h.state = StateAlive
	h.lastAck = now
	return true
}

// Sweep advances every live endpoint one liveness step. Alive handles move to
// awaiting-ack and are returned for probing. Handles still awaiting an ack
// from the previous sweep are marked evicted, removed from the registry, and
// returned so the caller can close their transports.
func (r *Registry) Sweep() (probe, evict []*Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.live {
		switch h.state {
		case StateAlive:
			h.state = StateAwaitingAck
			probe = append(probe, h)
		case StateAwaitingAck:
			evict = append(evict, h)
		}
	}
	for _, h := range evict {
		r.removeLocked(h)
	}
	return probe, evict
}

// DisconnectAll removes every live endpoint and returns the removed handles
// so the caller can close their transports. Used on shutdown.
func (r *Registry) DisconnectAll() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.live))
	for _, h := range r.live {
		out = append(out, h)
	}
	for _, h := range out {
		r.removeLocked(h)
	}
	return out
}

func (r *Registry) currentLocked(h *Handle) bool {
	return h != nil && r.live[h.identity] == h
}

func (r *Registry) unsubscribeLocked(h *Handle, channel string) bool {
	set := r.subscribers[channel]
	if _, ok := set[h]; !ok {
		return false
	}
	delete(set, h)
	if len(set) == 0 {
		delete(r.subscribers, channel)
	}
	delete(h.channels, channel)
	return true
}

func (r *Registry) removeLocked(h *Handle) {
	for channel := range h.channels {
		if set := r.subscribers[channel]; set != nil {
			delete(set, h)
			if len(set) == 0 {
				delete(r.subscribers, channel)
			}
		}
	}
	h.channels = make(map[string]struct{})
	h.state = StateEvicted
	if r.live[h.identity] == h {
		delete(r.live, h.identity)
	}
}

func identityOf(h *Handle) string {
	if h == nil {
		return ""
	}
	return h.identity
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
