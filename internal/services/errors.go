package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyTaken    = errors.New("already taken")
	ErrInvalidFormat   = errors.New("invalid format")
	ErrUnreachable     = errors.New("endpoint unreachable")
	ErrPersistence     = errors.New("persistence failure")
	ErrForward         = errors.New("forward failure")
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker so callers can classify it with errors.Is. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPersistence
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps the relay error taxonomy onto HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownEndpoint):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyTaken):
		return http.StatusConflict
	case errors.Is(err, ErrForward), errors.Is(err, ErrUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Reason returns the short, caller-facing reason for a taxonomy error, e.g.
// "already taken". Errors outside the taxonomy yield "internal error".
func Reason(err error) string {
	for _, marker := range []error{
		ErrInvalidFormat, ErrAlreadyTaken, ErrNotFound, ErrUnknownEndpoint,
		ErrUnreachable, ErrForward, ErrPersistence,
	} {
		if errors.Is(err, marker) {
			return marker.Error()
		}
	}
	return "internal error"
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "relay failure"
	}
	return strings.Join(parts, ": ")
}
