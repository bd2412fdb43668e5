package relay

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"courier/internal/config"
	"courier/internal/ownership"
	"courier/internal/services"
)

const (
	// PlaceholderBody replaces an empty message body.
	PlaceholderBody = "triggered"
	// DefaultPriority applies when a draft leaves priority unset.
	DefaultPriority = 3

	maxTopicLength = 256
)

// Draft is an unnormalized publish request.
type Draft struct {
	Body     string
	Title    string
	Priority int
}

func normalizeDraft(d Draft) (Draft, error) {
	out := Draft{
		Body:     normalizeText(d.Body),
		Title:    normalizeText(d.Title),
		Priority: d.Priority,
	}
	if out.Body == "" {
		out.Body = PlaceholderBody
	}
	if out.Priority == 0 {
		out.Priority = DefaultPriority
	}
	if out.Priority < 1 || out.Priority > 5 {
		return Draft{}, services.Wrap(services.ErrInvalidFormat, component, "publish",
			fmt.Sprintf("priority must be 1-5, got %d", d.Priority), nil)
	}
	return out, nil
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ValidateChannel checks a channel name against the rules of mode: slugs
// must match [a-z0-9_-]{3,50}; topics must be non-empty and free of '/'.
func ValidateChannel(mode, channel string) error {
	return validateChannel(mode, channel, "validate")
}

func validateChannel(mode, channel, op string) error {
	if mode == config.ModeSlug {
		if !ownership.ValidSlug(channel) {
			return services.Wrap(services.ErrInvalidFormat, component, op,
				fmt.Sprintf("invalid slug %q", channel), nil)
		}
		return nil
	}
	return validateTopic(channel, op)
}

func validateTopic(channel, op string) error {
	switch {
	case strings.TrimSpace(channel) == "":
		return services.Wrap(services.ErrInvalidFormat, component, op, "channel is required", nil)
	case strings.Contains(channel, "/"):
		return services.Wrap(services.ErrInvalidFormat, component, op,
			fmt.Sprintf("channel %q must not contain '/'", channel), nil)
	case len(channel) > maxTopicLength:
		return services.Wrap(services.ErrInvalidFormat, component, op,
			fmt.Sprintf("channel longer than %d bytes", maxTopicLength), nil)
	}
	return nil
}
