// Package archive persists routed feed events to PostgreSQL.
//
// The Writer drains the router's archive queue, batches events and inserts
// them into stream_events with append-only semantics. Event IDs are derived
// from the event content, so replaying a batch never duplicates rows.
package archive
