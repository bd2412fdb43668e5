package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"courier/internal/api"
	"courier/internal/logging"
	"courier/internal/relay"
	"courier/internal/services"
)

const maxPublishBytes = 64 * 1024

type apiServer struct {
	logger *slog.Logger
	daemon *Daemon
	mux    *http.ServeMux
	server *http.Server
}

func newAPIServer(d *Daemon, ws http.Handler, logger *slog.Logger) *apiServer {
	mux := http.NewServeMux()
	srv := &apiServer{
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		mux:    mux,
	}

	mux.HandleFunc("POST /api/publish/{channel}", srv.withRequestID(srv.handlePublish))
	mux.HandleFunc("PUT /api/publish/{channel}", srv.withRequestID(srv.handlePublish))
	mux.HandleFunc("GET /api/messages/{channel}", srv.withRequestID(srv.handleHistory))
	mux.HandleFunc("DELETE /api/messages/{channel}", srv.withRequestID(srv.handlePurge))
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.Handle("GET /ws/{identity}", ws)
	mux.Handle("GET /metrics", d.metrics.Handler())

	// No WriteTimeout: it would cut hijacked websocket connections.
	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown", logging.Error(err))
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *apiServer) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		ctx := services.WithRequestID(r.Context(), id)
		ctx = services.WithChannel(ctx, r.PathValue("channel"))
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(ctx))
	}
}

func (s *apiServer) handlePublish(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	draft, err := parsePublish(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	receipt, err := s.daemon.relay.Publish(r.Context(), channel, draft)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.Receipt{
		Message:   api.FromMessage(receipt.Message),
		Delivered: receipt.Delivered,
		Forwarded: receipt.Forwarded,
	})
}

// parsePublish accepts a JSON PublishRequest or, failing that, the raw body
// as message text. ?title= and ?priority= override either form.
func parsePublish(r *http.Request) (relay.Draft, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPublishBytes+1))
	if err != nil {
		return relay.Draft{}, services.Wrap(services.ErrInvalidFormat, "api", "publish", "read body", err)
	}
	if len(data) > maxPublishBytes {
		return relay.Draft{}, services.Wrap(services.ErrInvalidFormat, "api", "publish",
			fmt.Sprintf("body exceeds %d bytes", maxPublishBytes), nil)
	}

	var draft relay.Draft
	var req api.PublishRequest
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &req) == nil {
		draft = relay.Draft{Body: req.Message, Title: req.Title, Priority: req.Priority}
	} else {
		draft = relay.Draft{Body: string(data)}
	}

	query := r.URL.Query()
	if title := query.Get("title"); title != "" {
		draft.Title = title
	}
	if raw := query.Get("priority"); raw != "" {
		priority, err := strconv.Atoi(raw)
		if err != nil {
			return relay.Draft{}, services.Wrap(services.ErrInvalidFormat, "api", "publish",
				fmt.Sprintf("priority %q is not a number", raw), nil)
		}
		draft.Priority = priority
	}
	return draft, nil
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	since := r.URL.Query().Get("since")
	msgs, err := s.daemon.relay.ListSince(r.Context(), channel, since)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if since == "" {
		since = "all"
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{
		Channel:  channel,
		Since:    since,
		Messages: api.FromMessages(msgs),
	})
}

func (s *apiServer) handlePurge(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	removed, err := s.daemon.relay.DeleteAll(r.Context(), channel)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Channel: channel, Deleted: removed})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "request failed", "api_request_failed",
			logging.String(logging.FieldErrorHint, "see the wrapped error for the failing component"),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Reason: services.Reason(err)})
}
