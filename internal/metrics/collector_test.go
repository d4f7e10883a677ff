package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/officefeed/internal/archive"
	"github.com/rickgao/officefeed/internal/router"
)

func TestCollector_ConnectionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	const ep = "/ws/documents"
	c.ConnectAttempt(ep)
	c.Connected(ep)

	if got := testutil.ToFloat64(c.open.WithLabelValues(ep)); got != 1 {
		t.Errorf("open = %v, want 1", got)
	}

	c.Disconnected(ep, 1006)
	c.ReconnectScheduled(ep, 1, 3*time.Second)
	c.ConnectAttempt(ep)
	c.Disconnected(ep, 1006)
	c.GaveUp(ep)

	if got := testutil.ToFloat64(c.open.WithLabelValues(ep)); got != 0 {
		t.Errorf("open = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.connectAttempts.WithLabelValues(ep)); got != 2 {
		t.Errorf("attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.disconnects.WithLabelValues(ep, "1006")); got != 2 {
		t.Errorf("closed{code=1006} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.reconnects.WithLabelValues(ep)); got != 1 {
		t.Errorf("reconnects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.giveUps.WithLabelValues(ep)); got != 1 {
		t.Errorf("give ups = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.reconnectDelay); n != 1 {
		t.Errorf("reconnect delay series = %d, want 1", n)
	}
}

func TestCollector_Dispatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.MessageReceived("/ws/analytics")
	c.MessageReceived("/ws/analytics")
	c.MessageDropped("/ws/analytics")

	if got := testutil.ToFloat64(c.messages.WithLabelValues("/ws/analytics")); got != 2 {
		t.Errorf("messages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.dropped.WithLabelValues("/ws/analytics")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestCollector_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	NewCollector(reg)
}

func TestRegisterRouterStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := router.RouterStats{
		MessagesReceived: 10,
		MessagesRouted:   7,
		ParseErrors:      2,
		UnknownMessages:  1,
		ArchiveQueue:     router.QueueStats{Count: 4, Dropped: 3},
	}
	RegisterRouterStats(reg, func() router.RouterStats { return stats })

	expected := `
# HELP officefeed_router_messages_routed_total Envelopes applied to the board.
# TYPE officefeed_router_messages_routed_total counter
officefeed_router_messages_routed_total 7
# HELP officefeed_router_archive_queue_length Events waiting in the archive queue.
# TYPE officefeed_router_archive_queue_length gauge
officefeed_router_archive_queue_length 4
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"officefeed_router_messages_routed_total",
		"officefeed_router_archive_queue_length",
	)
	if err != nil {
		t.Error(err)
	}

	// Values are read at scrape time
	stats.MessagesRouted = 8
	if err := testutil.GatherAndCompare(reg, strings.NewReader(strings.Replace(expected, "total 7", "total 8", 1)),
		"officefeed_router_messages_routed_total",
		"officefeed_router_archive_queue_length",
	); err != nil {
		t.Error(err)
	}
}

func TestRegisterArchiveStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterArchiveStats(reg, func() archive.WriterStats {
		return archive.WriterStats{Inserts: 42, Errors: 1}
	})

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if n != 5 {
		t.Errorf("archive series = %d, want 5", n)
	}

	expected := `
# HELP officefeed_archive_inserts_total Rows inserted into stream_events.
# TYPE officefeed_archive_inserts_total counter
officefeed_archive_inserts_total 42
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "officefeed_archive_inserts_total"); err != nil {
		t.Error(err)
	}
}
