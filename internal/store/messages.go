package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// InsertMessage persists a message. Messages with an empty ID or channel are rejected.
func (s *Store) InsertMessage(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ID) == "" {
		return errors.New("message id is required")
	}
	if strings.TrimSpace(msg.Channel) == "" {
		return errors.New("message channel is required")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO messages (id, channel, title, body, priority, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Channel, msg.Title, msg.Body, msg.Priority, msg.Time,
	)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

// QueryMessages returns the newest limit messages for a channel created at
// or after since (epoch seconds), oldest first.
func (s *Store) QueryMessages(ctx context.Context, channel string, since int64, limit int) ([]Message, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		return []Message{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, title, body, priority, created_at FROM (
		   SELECT id, channel, title, body, priority, created_at, seq
		   FROM messages
		   WHERE channel = ? AND created_at >= ?
		   ORDER BY created_at DESC, seq DESC
		   LIMIT ?
		 )
		 ORDER BY created_at ASC, seq ASC`,
		channel, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Channel, &msg.Title, &msg.Body, &msg.Priority, &msg.Time); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// DeleteMessages removes every message for a channel and returns the count.
func (s *Store) DeleteMessages(ctx context.Context, channel string) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM messages WHERE channel = ?`, channel)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}
