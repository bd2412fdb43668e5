package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"courier/internal/api"
	"courier/internal/config"
	"courier/internal/services"
	"courier/internal/store"
)

const userAgent = "Courier-Go/0.1.0"

// Result reports what the push gateway did with a forwarded message.
type Result struct {
	Sent    int
	Skipped bool
}

// Forwarder delegates a message to an external push gateway.
type Forwarder interface {
	Forward(ctx context.Context, channel string, msg store.Message) (Result, error)
}

// New builds a forwarder from configuration. When no gateway is configured a
// noop implementation is returned.
func New(cfg *config.Config) Forwarder {
	endpoint := strings.TrimSpace(cfg.Forward.GatewayURL)
	if endpoint == "" {
		return noopForwarder{}
	}

	timeout := cfg.ForwardTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	if cfg.Forward.Format == config.FormatNtfy {
		return &ntfyForwarder{base: endpoint, client: client}
	}
	return &gatewayForwarder{endpoint: endpoint, client: client}
}

// Enabled reports whether f actually reaches a gateway.
func Enabled(f Forwarder) bool {
	if f == nil {
		return false
	}
	_, noop := f.(noopForwarder)
	return !noop
}

type gatewayForwarder struct {
	endpoint string
	client   *http.Client
}

func (g *gatewayForwarder) Forward(ctx context.Context, channel string, msg store.Message) (Result, error) {
	body, err := json.Marshal(api.ForwardRequest{Channel: channel, Message: api.FromMessage(msg)})
	if err != nil {
		return Result{}, fmt.Errorf("encode forward request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrForward, "forward", "post", "channel="+channel, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return Result{}, services.Wrap(services.ErrForward, "forward", "post", "channel="+channel, err)
	}

	var payload api.ForwardResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Result{}, services.Wrap(services.ErrForward, "forward", "read response", "channel="+channel, err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return Result{}, services.Wrap(services.ErrForward, "forward", "decode response", "channel="+channel, err)
		}
	}
	return Result{Sent: payload.Sent}, nil
}

type ntfyForwarder struct {
	base   string
	client *http.Client
}

func (n *ntfyForwarder) Forward(ctx context.Context, channel string, msg store.Message) (Result, error) {
	endpoint := n.base + "/" + url.PathEscape(channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return Result{}, fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	req.Header.Set("Tags", "courier,"+channel)
	if msg.Priority != 0 && msg.Priority != 3 {
		req.Header.Set("Priority", strconv.Itoa(msg.Priority))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrForward, "forward", "ntfy", "channel="+channel, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return Result{}, services.Wrap(services.ErrForward, "forward", "ntfy", "channel="+channel, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return Result{Sent: 1}, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

type noopForwarder struct{}

func (noopForwarder) Forward(context.Context, string, store.Message) (Result, error) {
	return Result{Skipped: true}, nil
}
