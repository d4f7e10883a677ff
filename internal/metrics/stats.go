package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rickgao/officefeed/internal/archive"
	"github.com/rickgao/officefeed/internal/router"
)

// RegisterRouterStats exposes router counters, read from stats at scrape time.
func RegisterRouterStats(reg prometheus.Registerer, stats func() router.RouterStats) {
	f := promauto.With(reg)

	counter := func(name, help string, get func(router.RouterStats) int64) {
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(get(stats())) })
	}

	counter("messages_received_total", "Frames handed to the router.",
		func(s router.RouterStats) int64 { return s.MessagesReceived })
	counter("messages_routed_total", "Envelopes applied to the board.",
		func(s router.RouterStats) int64 { return s.MessagesRouted })
	counter("parse_errors_total", "Envelopes that failed to decode.",
		func(s router.RouterStats) int64 { return s.ParseErrors })
	counter("unknown_messages_total", "Envelopes with an unknown type.",
		func(s router.RouterStats) int64 { return s.UnknownMessages })
	counter("archive_queue_dropped_total", "Events dropped from a full archive queue.",
		func(s router.RouterStats) int64 { return s.ArchiveQueue.Dropped })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "archive_queue_length",
		Help:      "Events waiting in the archive queue.",
	}, func() float64 { return float64(stats().ArchiveQueue.Count) })
}

// RegisterArchiveStats exposes archive writer counters.
func RegisterArchiveStats(reg prometheus.Registerer, stats func() archive.WriterStats) {
	f := promauto.With(reg)

	counter := func(name, help string, get func(archive.WriterStats) int64) {
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(get(stats())) })
	}

	counter("inserts_total", "Rows inserted into stream_events.",
		func(s archive.WriterStats) int64 { return s.Inserts })
	counter("conflicts_total", "Rows skipped as already archived.",
		func(s archive.WriterStats) int64 { return s.Conflicts })
	counter("errors_total", "Failed batch inserts.",
		func(s archive.WriterStats) int64 { return s.Errors })
	counter("dropped_total", "Rows lost with failed batches.",
		func(s archive.WriterStats) int64 { return s.Dropped })
	counter("flushes_total", "Successful batch flushes.",
		func(s archive.WriterStats) int64 { return s.Flushes })
}
