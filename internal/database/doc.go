// Package database provides the PostgreSQL connection pool for the event archive.
//
// The archive is a single append-only table, stream_events, created on startup
// by EnsureSchema when it does not exist yet.
package database
