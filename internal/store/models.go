package store

import "time"

// Message is a persisted relay message. Messages are immutable once stored.
type Message struct {
	ID       string
	Channel  string
	Title    string
	Body     string
	Priority int
	Time     int64 // epoch seconds
}

// CreatedAt returns the message creation time.
func (m Message) CreatedAt() time.Time {
	return time.Unix(m.Time, 0)
}

// Ownership records the identity holding a slug.
type Ownership struct {
	Channel   string
	Owner     string
	CreatedAt time.Time
	LastUsed  *time.Time
}

// Stats aggregates persisted counts for status output.
type Stats struct {
	Messages      int
	Channels      int
	OwnedChannels int
}

// DatabaseHealth captures diagnostic information about the relay database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	MissingTables    []string
	IntegrityCheck   bool
	TotalMessages    int
	Error            string
}
