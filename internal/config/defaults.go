package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL              = "ws://localhost:8000"
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultBatchSize            = 100
	DefaultFlushInterval        = 1 * time.Second
	DefaultQueueSize            = 256
	DefaultQueueMax             = 65536
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultConnectTimeout       = 10 * time.Second
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// DefaultEndpoints are the office system's feeds.
var DefaultEndpoints = []string{"/ws/documents", "/ws/analytics", "/ws/workflows"}

func (c *Config) applyDefaults() {
	// Stream defaults
	if c.Stream.BaseURL == "" && c.Stream.Origin == "" {
		c.Stream.BaseURL = DefaultBaseURL
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Stream.MaxReconnectAttempts == nil {
		n := DefaultMaxReconnectAttempts
		c.Stream.MaxReconnectAttempts = &n
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if len(c.Stream.Endpoints) == 0 {
		c.Stream.Endpoints = append([]string(nil), DefaultEndpoints...)
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.QueueSize == 0 {
		c.Archive.QueueSize = DefaultQueueSize
	}
	if c.Archive.QueueMax == 0 {
		c.Archive.QueueMax = DefaultQueueMax
	}
	applyDBDefaults(&c.Archive.Database)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
	if db.ConnectTimeout == 0 {
		db.ConnectTimeout = DefaultConnectTimeout
	}
}
