// Package store persists relay messages and channel ownership in SQLite.
//
// The Store manages the database connection, applies the embedded ordered
// migrations, and retries statements that hit SQLITE_BUSY with a bounded
// backoff. Messages are append-only and removed only by bulk delete per
// channel. The channels table enforces one owner per name through its primary
// key, which makes InsertOwnership the arbiter for racing claims: a uniqueness
// violation surfaces as ErrConflict and the caller decides how to reconcile.
//
// Treat this package as the single source of truth for persisted relay state;
// when a table changes, add a new numbered file under migrations/.
package store
