// Package store is the durable local side of sync: a SQLite file holding the
// last known snapshot of every collection and the offline outbox.
//
// # Snapshots
//
// One row per user and collection, keyed "billbook:<user>:<collection>".
// Each row holds the whole collection as a canonical JSON array. A write
// only lands if its seq is not older than the stored one, so a late cache
// write from a stale projection cannot clobber a newer one.
//
// The unscoped key "billbook:preview" keeps the most recently saved invoice
// for the preview surface, which has no user context.
//
// # Outbox
//
// Mutations whose remote write failed. Entries are content-addressed, so
// enqueueing the same mutation twice is a no-op. Reads are ordered by
// seq ASC, id ASC COLLATE BINARY, which is also the replay order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
