package api

import (
	"time"

	"courier/internal/registry"
	"courier/internal/store"
)

// FromMessage converts a persisted message into its wire form.
func FromMessage(msg store.Message) Message {
	return Message{
		ID:       msg.ID,
		Channel:  msg.Channel,
		Title:    msg.Title,
		Message:  msg.Body,
		Priority: msg.Priority,
		Time:     msg.Time,
	}
}

// FromMessages converts a slice, never returning nil.
func FromMessages(msgs []store.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, FromMessage(msg))
	}
	return out
}

// FromEndpoints converts registry snapshots, ordered as given.
func FromEndpoints(infos []registry.EndpointInfo) []Endpoint {
	out := make([]Endpoint, 0, len(infos))
	for _, info := range infos {
		channels := info.Channels
		if channels == nil {
			channels = []string{}
		}
		out = append(out, Endpoint{
			Identity:    info.Identity,
			State:       info.State.String(),
			Channels:    channels,
			ConnectedAt: formatTime(info.ConnectedAt),
			LastAck:     formatTime(info.LastAck),
		})
	}
	return out
}

// FormatTime renders t the way API payloads do; zero times render empty.
func FormatTime(t time.Time) string {
	return formatTime(t)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
