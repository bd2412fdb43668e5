package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"courier/internal/api"
	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/ownership"
	"courier/internal/registry"
	"courier/internal/relay"
	"courier/internal/services"
)

const (
	maxFrameBytes   = 64 * 1024
	reasonWrongMode = "unsupported in this mode"
)

// Handler upgrades GET /ws/{identity} to a websocket endpoint and serves its
// command frames until the connection ends.
type Handler struct {
	mode         string
	registry     *registry.Registry
	owners       *ownership.Manager
	writeTimeout time.Duration
	logger       *slog.Logger
	upgrader     websocket.Upgrader
}

// NewHandler builds the websocket handler. owners may be nil in topic mode.
func NewHandler(cfg *config.Config, reg *registry.Registry, owners *ownership.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		mode:         cfg.Relay.Mode,
		registry:     reg,
		owners:       owners,
		writeTimeout: cfg.WriteTimeout(),
		logger:       logging.NewComponentLogger(logger, "transport"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.PathValue("identity"))
	if identity == "" {
		identity = strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/ws/"))
	}
	if identity == "" || strings.Contains(identity, "/") {
		http.Error(w, "endpoint identity is required", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Debug("websocket upgrade failed", logging.Endpoint(identity), logging.Error(err))
		return
	}
	ws.SetReadLimit(maxFrameBytes)

	conn := newConn(ws, h.writeTimeout)
	handle, prior := h.registry.Connect(identity, conn)
	if prior != nil {
		_ = prior.Transport().Close()
		h.logger.Info("endpoint superseded by new connection", logging.Endpoint(identity))
	}

	ctx := services.WithEndpoint(services.WithRequestID(context.WithoutCancel(r.Context()), uuid.NewString()), identity)
	logger := logging.WithContext(ctx, h.logger)

	ws.SetPongHandler(func(string) error {
		h.registry.Ack(handle)
		return nil
	})

	channels := h.attach(ctx, logger, handle, conn, r.URL.Query().Get("channels"))
	logger.Info("endpoint connected", logging.Any("channels", channels))

	h.readLoop(ctx, logger, handle, conn)

	if h.registry.Disconnect(handle) {
		logger.Info("endpoint disconnected")
	}
	_ = conn.Close()
}

// attach performs the connect-time subscriptions: ?channels= in topic mode,
// every owned slug in slug mode.
func (h *Handler) attach(ctx context.Context, logger *slog.Logger, handle *registry.Handle, conn *Conn, query string) []string {
	if h.mode == config.ModeSlug {
		if h.owners == nil {
			return nil
		}
		names, err := h.owners.Attach(ctx, handle)
		if err != nil {
			logging.WarnWithContext(logger, "could not attach owned slugs", "attach_failed",
				logging.String(logging.FieldErrorHint, "check the relay database"),
				logging.Error(err),
			)
			h.reply(ctx, conn, api.Frame{Type: api.FrameError, Op: "attach", Reason: services.Reason(err)})
		}
		return names
	}

	var subscribed []string
	for _, name := range strings.Split(query, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := h.subscribe(handle, name); err != nil {
			h.reply(ctx, conn, api.Frame{Type: api.FrameError, Op: api.FrameSubscribe, Channel: name, Reason: services.Reason(err)})
			continue
		}
		subscribed = append(subscribed, name)
	}
	return subscribed
}

func (h *Handler) readLoop(ctx context.Context, logger *slog.Logger, handle *registry.Handle, conn *Conn) {
	for {
		kind, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !conn.Closed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read ended", logging.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var frame api.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.reply(ctx, conn, api.Frame{Type: api.FrameError, Reason: services.ErrInvalidFormat.Error()})
			continue
		}
		h.reply(ctx, conn, h.handle(ctx, logger, handle, frame))
	}
}

// handle executes one command frame and returns the reply.
func (h *Handler) handle(ctx context.Context, logger *slog.Logger, handle *registry.Handle, frame api.Frame) api.Frame {
	ok := api.Frame{Type: api.FrameOK, Op: frame.Type, Channel: frame.Channel}
	fail := func(reason string) api.Frame {
		return api.Frame{Type: api.FrameError, Op: frame.Type, Channel: frame.Channel, Reason: reason}
	}

	switch frame.Type {
	case api.FramePing:
		h.registry.Ack(handle)
		return api.Frame{Type: api.FramePong}

	case api.FrameSubscribe:
		if h.mode == config.ModeSlug {
			return fail(reasonWrongMode)
		}
		if err := h.subscribe(handle, frame.Channel); err != nil {
			return fail(services.Reason(err))
		}
		return ok

	case api.FrameUnsubscribe:
		h.registry.Unsubscribe(handle, frame.Channel)
		return ok

	case api.FrameClaim:
		if h.owners == nil || h.mode != config.ModeSlug {
			return fail(reasonWrongMode)
		}
		if err := h.owners.Claim(ctx, frame.Channel, handle.Identity()); err != nil {
			if !errors.Is(err, services.ErrAlreadyTaken) && !errors.Is(err, services.ErrInvalidFormat) {
				logging.WarnWithContext(logger, "claim failed", "claim_failed",
					logging.Channel(frame.Channel),
					logging.String(logging.FieldErrorHint, "check the relay database"),
					logging.Error(err),
				)
			}
			return fail(services.Reason(err))
		}
		return ok

	case api.FrameRelease:
		if h.owners == nil || h.mode != config.ModeSlug {
			return fail(reasonWrongMode)
		}
		removed, err := h.owners.Release(ctx, frame.Channel, handle.Identity())
		if err != nil {
			return fail(services.Reason(err))
		}
		if !removed {
			return fail(services.ErrNotFound.Error())
		}
		return ok

	default:
		return fail(services.ErrInvalidFormat.Error())
	}
}

func (h *Handler) subscribe(handle *registry.Handle, channel string) error {
	if err := relay.ValidateChannel(h.mode, channel); err != nil {
		return err
	}
	return h.registry.Subscribe(handle, channel)
}

func (h *Handler) reply(ctx context.Context, conn *Conn, frame api.Frame) {
	if err := conn.WriteFrame(ctx, frame); err != nil {
		h.logger.Debug("reply write failed", logging.Error(err))
	}
}
