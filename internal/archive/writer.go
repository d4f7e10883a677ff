package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/officefeed/internal/router"
)

// eventNamespace scopes content-derived event IDs.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/rickgao/officefeed/stream_events"))

const insertEventSQL = `
	INSERT INTO stream_events (event_id, endpoint, event_type, connection_id, payload, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (event_id) DO NOTHING
`

// Writer consumes router events and writes them to the stream_events table.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the router
	input *router.Queue[router.Event]

	db DB

	// Batching
	batch       []eventRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats WriterStats
}

// NewWriter creates a new Writer.
func NewWriter(cfg WriterConfig, input *router.Queue[router.Event], db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input queue, writes what is already queued, flushes and
// shuts down. Events sent to the queue afterwards are rejected.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("archive writer stopped")
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
		return ctx.Err()
	}

	// Left over only when the writer was never started
	for _, ev := range w.input.DrainTo(0) {
		w.appendRow(w.transform(ev))
	}
	w.flushContext(ctx)

	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() WriterStats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop blocks on the input queue and accumulates batches. It returns
// once the queue is closed and empty.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		ev, ok := w.input.Receive()
		if !ok {
			return
		}
		w.handleEvent(ev)

		// Pick up whatever else is already queued in one pass
		for _, ev := range w.input.DrainTo(w.cfg.BatchSize - 1) {
			w.handleEvent(ev)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flushContext(w.ctx)
		}
	}
}

// handleEvent transforms and adds an event to the batch.
func (w *Writer) handleEvent(ev router.Event) {
	if w.appendRow(w.transform(ev)) {
		w.flushContext(w.ctx)
	}
}

// appendRow adds a row and reports whether the batch is full.
func (w *Writer) appendRow(row eventRow) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts an Event to an eventRow.
func (w *Writer) transform(ev router.Event) eventRow {
	payload := []byte(ev.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return eventRow{
		EventID:      eventID(ev).String(),
		Endpoint:     ev.Endpoint,
		EventType:    ev.Type,
		ConnectionID: ev.ConnectionID,
		Payload:      payload,
		ReceivedAt:   ev.ReceivedAt.UnixMicro(),
	}
}

// eventID derives a stable ID from where and when the event arrived and its payload.
func eventID(ev router.Event) uuid.UUID {
	key := fmt.Sprintf("%s|%s|%d|", ev.Endpoint, ev.ConnectionID, ev.ReceivedAt.UnixNano())
	return uuid.NewSHA1(eventNamespace, append([]byte(key), ev.Payload...))
}

// flushContext writes the current batch to the database.
func (w *Writer) flushContext(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.stats.Errors++
		w.stats.Dropped += int64(len(batch))
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	if w.db == nil {
		return 0, fmt.Errorf("archive database not configured")
	}
	if ctx.Err() != nil {
		// Shutdown flushes run after the writer context is cancelled
		ctx = context.WithoutCancel(ctx)
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertEventSQL, r.EventID, r.Endpoint, r.EventType, r.ConnectionID, r.Payload, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
