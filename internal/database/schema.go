package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. *pgxpool.Pool and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema creates the archive table. received_at is µs since epoch.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS stream_events (
		event_id      UUID PRIMARY KEY,
		endpoint      TEXT NOT NULL,
		event_type    TEXT NOT NULL,
		connection_id TEXT NOT NULL,
		payload       JSONB NOT NULL,
		received_at   BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS stream_events_type_received_idx
		ON stream_events (event_type, received_at)`,
	`CREATE INDEX IF NOT EXISTS stream_events_endpoint_received_idx
		ON stream_events (endpoint, received_at)`,
}

// EnsureSchema creates the archive table and indexes if missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
