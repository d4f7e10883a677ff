package archive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// DB sends query batches. *pgxpool.Pool satisfies it.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig contains configuration for the archive writer.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
	}
}

// eventRow represents a row for the stream_events table.
type eventRow struct {
	EventID      string // UUID
	Endpoint     string
	EventType    string
	ConnectionID string
	Payload      []byte // JSONB
	ReceivedAt   int64  // Microseconds
}

// WriterStats holds counters for the writer.
type WriterStats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Dropped   int64 // Rows lost with a failed batch
	Flushes   int64
}
