package forward_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"courier/internal/api"
	"courier/internal/config"
	"courier/internal/forward"
	"courier/internal/services"
	"courier/internal/store"
	"courier/internal/testsupport"
)

func sampleMessage() store.Message {
	return store.Message{
		ID:       "m-1",
		Channel:  "sale-alerts",
		Title:    "Flash sale",
		Body:     "50% off",
		Priority: 4,
		Time:     1700000000,
	}
}

func TestNewWithoutGatewayIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	f := forward.New(cfg)
	if forward.Enabled(f) {
		t.Fatal("expected noop forwarder without gateway")
	}
	result, err := f.Forward(context.Background(), "alerts", sampleMessage())
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected skipped result, got %+v", result)
	}
}

func TestGatewayForwarderPostsJSON(t *testing.T) {
	var got api.ForwardRequest
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"sent":3}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithForwardURL(srv.URL))
	f := forward.New(cfg)
	if !forward.Enabled(f) {
		t.Fatal("expected gateway forwarder")
	}

	result, err := f.Forward(context.Background(), "sale-alerts", sampleMessage())
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if result.Sent != 3 {
		t.Fatalf("expected sent=3, got %d", result.Sent)
	}
	if contentType != "application/json" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	if got.Channel != "sale-alerts" || got.Message.Message != "50% off" || got.Message.ID != "m-1" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestGatewayForwarderNon2xxIsForwardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithForwardURL(srv.URL))
	_, err := forward.New(cfg).Forward(context.Background(), "alerts", sampleMessage())
	if !errors.Is(err, services.ErrForward) {
		t.Fatalf("expected ErrForward, got %v", err)
	}
	if services.HTTPStatus(err) != http.StatusBadGateway {
		t.Fatalf("expected 502 mapping, got %d", services.HTTPStatus(err))
	}
}

func TestNtfyForwarderUsesTopicPathAndHeaders(t *testing.T) {
	var path, title, priority, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		title = r.Header.Get("Title")
		priority = r.Header.Get("Priority")
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithForwardURL(srv.URL))
	cfg.Forward.Format = config.FormatNtfy

	result, err := forward.New(cfg).Forward(context.Background(), "sale-alerts", sampleMessage())
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if result.Sent != 1 {
		t.Fatalf("expected sent=1, got %d", result.Sent)
	}
	if path != "/sale-alerts" {
		t.Fatalf("unexpected path %q", path)
	}
	if title != "Flash sale" || priority != "4" || body != "50% off" {
		t.Fatalf("unexpected request title=%q priority=%q body=%q", title, priority, body)
	}
}
