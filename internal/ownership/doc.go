// Package ownership binds slugs to the single identity allowed to receive them.
//
// Claims race through the persisted channels table: the row insert either
// wins or fails on the uniqueness constraint, and the in-memory owner cache
// follows whatever the store decided. Lookups are cached in a bounded LRU and
// concurrent misses for the same slug collapse into one query.
package ownership
