package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertOwnership records identity as the owner of channel. A channel that
// already has an owner, including the same identity, yields ErrConflict.
func (s *Store) InsertOwnership(ctx context.Context, channel, identity string, at time.Time) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO channels (name, owner, created_at) VALUES (?, ?, ?)`,
		channel, identity, at.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert ownership %s: %w", channel, ErrConflict)
		}
		return fmt.Errorf("insert ownership %s: %w", channel, err)
	}
	return nil
}

// LookupOwner returns the owning identity of channel, or ok=false when unowned.
func (s *Store) LookupOwner(ctx context.Context, channel string) (string, bool, error) {
	var owner string
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT owner FROM channels WHERE name = ?`, channel)
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup owner %s: %w", channel, err)
	}
	return owner, true, nil
}

// GetOwnership returns the full ownership record for channel, or nil.
func (s *Store) GetOwnership(ctx context.Context, channel string) (*Ownership, error) {
	var (
		record   Ownership
		created  int64
		lastUsed sql.NullInt64
	)
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT name, owner, created_at, last_used FROM channels WHERE name = ?`, channel)
	if err := row.Scan(&record.Channel, &record.Owner, &created, &lastUsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ownership %s: %w", channel, err)
	}
	record.CreatedAt = time.Unix(created, 0)
	if lastUsed.Valid {
		t := time.Unix(lastUsed.Int64, 0)
		record.LastUsed = &t
	}
	return &record, nil
}

// DeleteOwnership removes the record only when identity is the owner.
func (s *Store) DeleteOwnership(ctx context.Context, channel, identity string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM channels WHERE name = ? AND owner = ?`, channel, identity)
	if err != nil {
		return false, fmt.Errorf("delete ownership %s: %w", channel, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return removed > 0, nil
}

// OwnedBy lists the channels owned by identity in name order.
func (s *Store) OwnedBy(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT name FROM channels WHERE owner = ? ORDER BY name`, identity)
	if err != nil {
		return nil, fmt.Errorf("owned by %s: %w", identity, err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TouchChannel records the last publish time for an owned channel.
func (s *Store) TouchChannel(ctx context.Context, channel string, at time.Time) error {
	if _, err := s.execWithRetry(ctx, `UPDATE channels SET last_used = ? WHERE name = ?`, at.Unix(), channel); err != nil {
		return fmt.Errorf("touch channel %s: %w", channel, err)
	}
	return nil
}
