package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"courier/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrPersistence, "store", "insert message", "channel=alerts", base)
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"store", "insert message", "channel=alerts", "disk full"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrAlreadyTaken, "ownership", "claim", "", nil)
	if !errors.Is(err, services.ErrAlreadyTaken) {
		t.Fatalf("expected already taken marker, got %v", err)
	}
	if got := services.Reason(err); got != "already taken" {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{services.Wrap(services.ErrInvalidFormat, "ownership", "claim", "bad slug", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrNotFound, "relay", "publish", "", nil), http.StatusNotFound},
		{services.Wrap(services.ErrAlreadyTaken, "ownership", "claim", "", nil), http.StatusConflict},
		{services.Wrap(services.ErrPersistence, "store", "insert", "", errors.New("io")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := services.HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
	if got := services.Reason(errors.New("boom")); got != "internal error" {
		t.Fatalf("unexpected reason for unclassified error: %q", got)
	}
}
