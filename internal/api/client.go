package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAPIUnavailable reports that the daemon could not be reached.
var ErrAPIUnavailable = errors.New("courier API unavailable")

// StatusError is a non-2xx reply decoded from an ErrorResponse body.
type StatusError struct {
	Code   int
	Reason string
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api returned %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("api returned %d", e.Code)
}

// Client talks to a running daemon's HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for bind (host:port or URL).
func NewClient(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// WebsocketURL returns the ws:// URL for identity with an optional query.
func (c *Client) WebsocketURL(identity string, query url.Values) string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/" + identity
	u.RawPath = "/ws/" + url.PathEscape(identity)
	u.RawQuery = query.Encode()
	return u.String()
}

// Publish posts req to channel.
func (c *Client) Publish(ctx context.Context, channel string, req PublishRequest) (Receipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Receipt{}, err
	}
	var receipt Receipt
	err = c.do(ctx, http.MethodPost, "/api/publish/"+url.PathEscape(channel), nil, bytes.NewReader(body), &receipt)
	return receipt, err
}

// History reads back channel messages since the given window.
func (c *Client) History(ctx context.Context, channel, since string) (HistoryResponse, error) {
	values := url.Values{}
	if strings.TrimSpace(since) != "" {
		values.Set("since", since)
	}
	var payload HistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(channel), values, nil, &payload)
	return payload, err
}

// Purge deletes every stored message for channel.
func (c *Client) Purge(ctx context.Context, channel string) (DeleteResponse, error) {
	var payload DeleteResponse
	err := c.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(channel), nil, nil, &payload)
	return payload, err
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var payload DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &payload)
	return payload, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	ref, err := url.Parse(path)
	if err != nil {
		return err
	}
	ref.RawQuery = query.Encode()
	endpoint := c.base.ResolveReference(ref)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		statusErr := &StatusError{Code: resp.StatusCode}
		var payload ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err == nil {
			statusErr.Reason = payload.Reason
			statusErr.Detail = payload.Error
		}
		return statusErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsAPIUnavailable reports whether err means the daemon is not listening.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
