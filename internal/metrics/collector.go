package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rickgao/officefeed/internal/connection"
)

const namespace = "officefeed"

// Collector records connection lifecycle metrics. It implements connection.Observer.
type Collector struct {
	connectAttempts *prometheus.CounterVec
	connections     *prometheus.CounterVec
	open            *prometheus.GaugeVec
	disconnects     *prometheus.CounterVec
	reconnects      *prometheus.CounterVec
	reconnectDelay  *prometheus.HistogramVec
	giveUps         *prometheus.CounterVec
	messages        *prometheus.CounterVec
	dropped         *prometheus.CounterVec
}

var _ connection.Observer = (*Collector)(nil)

// NewCollector creates the connection metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	labels := []string{"endpoint"}

	return &Collector{
		connectAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "attempts_total",
			Help:      "WebSocket connection attempts.",
		}, labels),
		connections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "established_total",
			Help:      "WebSocket connections established.",
		}, labels),
		open: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "open",
			Help:      "1 while the endpoint has an open connection.",
		}, labels),
		disconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "closed_total",
			Help:      "Connections closed by the server or the network, by close code.",
		}, []string{"endpoint", "code"}),
		reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled.",
		}, labels),
		reconnectDelay: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "reconnect_delay_seconds",
			Help:      "Backoff delay of scheduled reconnects.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 1.5, 12),
		}, labels),
		giveUps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "give_ups_total",
			Help:      "Endpoints that exhausted their reconnect attempts.",
		}, labels),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Frames decoded and handed to the handler.",
		}, labels),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Malformed frames dropped.",
		}, labels),
	}
}

// ConnectAttempt counts a dial of endpoint.
func (c *Collector) ConnectAttempt(endpoint string) {
	c.connectAttempts.WithLabelValues(endpoint).Inc()
}

// Connected counts an established connection and marks endpoint open.
func (c *Collector) Connected(endpoint string) {
	c.connections.WithLabelValues(endpoint).Inc()
	c.open.WithLabelValues(endpoint).Set(1)
}

// Disconnected marks endpoint closed and counts the close by code.
func (c *Collector) Disconnected(endpoint string, code int) {
	c.open.WithLabelValues(endpoint).Set(0)
	c.disconnects.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

// ReconnectScheduled counts a pending retry and observes its backoff delay.
func (c *Collector) ReconnectScheduled(endpoint string, attempt int, delay time.Duration) {
	c.reconnects.WithLabelValues(endpoint).Inc()
	c.reconnectDelay.WithLabelValues(endpoint).Observe(delay.Seconds())
}

// GaveUp counts an endpoint that reached its reconnect ceiling.
func (c *Collector) GaveUp(endpoint string) {
	c.giveUps.WithLabelValues(endpoint).Inc()
}

// MessageReceived counts a frame handed to the handler.
func (c *Collector) MessageReceived(endpoint string) {
	c.messages.WithLabelValues(endpoint).Inc()
}

// MessageDropped counts a malformed frame.
func (c *Collector) MessageDropped(endpoint string) {
	c.dropped.WithLabelValues(endpoint).Inc()
}
