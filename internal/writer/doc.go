// Package writer persists the latest canonical state to PostgreSQL.
//
// The SnapshotWriter consumes the store change feed and upserts one row per
// asset, alert and favorite. It keeps current state only, never a price
// series: changes to the same record within a batch are coalesced and the
// last one wins.
package writer
