package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Message describes a relay message in a transport-friendly format.
type Message struct {
	ID       string `json:"id"`
	Channel  string `json:"channel"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
	Time     int64  `json:"time"`
}

// PublishRequest is the JSON body accepted by the publish endpoint.
type PublishRequest struct {
	Message  string `json:"message"`
	Title    string `json:"title,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// Receipt reports what happened to a published message.
type Receipt struct {
	Message
	Delivered int  `json:"delivered"`
	Forwarded bool `json:"forwarded"`
}

// HistoryResponse wraps a read-back result.
type HistoryResponse struct {
	Channel  string    `json:"channel"`
	Since    string    `json:"since"`
	Messages []Message `json:"messages"`
}

// DeleteResponse reports a bulk delete.
type DeleteResponse struct {
	Channel string `json:"channel"`
	Deleted int64  `json:"deleted"`
}

// Endpoint describes a live endpoint.
type Endpoint struct {
	Identity    string   `json:"identity"`
	State       string   `json:"state"`
	Channels    []string `json:"channels"`
	ConnectedAt string   `json:"connectedAt"`
	LastAck     string   `json:"lastAck,omitempty"`
}

// StoreStatus summarizes persisted state.
type StoreStatus struct {
	Path          string `json:"path"`
	Messages      int    `json:"messages"`
	Channels      int    `json:"channels"`
	OwnedChannels int    `json:"ownedChannels"`
	SchemaVersion string `json:"schemaVersion,omitempty"`
	Healthy       bool   `json:"healthy"`
	Problem       string `json:"problem,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running          bool        `json:"running"`
	PID              int         `json:"pid"`
	Mode             string      `json:"mode"`
	StartedAt        string      `json:"startedAt,omitempty"`
	LiveEndpoints    int         `json:"liveEndpoints"`
	Channels         int         `json:"channels"`
	ForwardEnabled   bool        `json:"forwardEnabled"`
	LivenessInterval string      `json:"livenessInterval"`
	Store            StoreStatus `json:"store"`
	Endpoints        []Endpoint  `json:"endpoints"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// ForwardRequest is the body posted to a JSON push gateway.
type ForwardRequest struct {
	Channel string  `json:"channel"`
	Message Message `json:"message"`
}

// ForwardResponse is the reply expected from a JSON push gateway.
type ForwardResponse struct {
	Sent int `json:"sent"`
}

// Websocket frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameClaim       = "claim"
	FrameRelease     = "release"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameMessage     = "message"
	FrameOK          = "ok"
	FrameError       = "error"
)

// Frame is one websocket text frame in either direction.
type Frame struct {
	Type     string   `json:"type"`
	Channel  string   `json:"channel,omitempty"`
	Op       string   `json:"op,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Message  *Message `json:"message,omitempty"`
	Channels []string `json:"channels,omitempty"`
}
