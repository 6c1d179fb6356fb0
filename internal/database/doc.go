// Package database provides connection pool management for PostgreSQL.
//
// The tracker keeps one optional pool, used by the snapshot writer to
// persist the latest canonical state.
package database
