package config

import "time"

// Config is the root configuration for a feedwatch instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Stream   StreamConfig   `yaml:"stream"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// StreamConfig holds the WebSocket feed settings.
type StreamConfig struct {
	BaseURL string `yaml:"base_url"` // e.g. ws://localhost:8000; wins over origin
	Origin  string `yaml:"origin"`   // http(s) origin the ws(s) URL is derived from

	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts *int          `yaml:"max_reconnect_attempts"` // nil uses the default, 0 disables reconnects
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`

	Endpoints []string `yaml:"endpoints"`
}

// Attempts returns the configured reconnect ceiling, or the default when unset.
func (s *StreamConfig) Attempts() int {
	if s.MaxReconnectAttempts == nil {
		return DefaultMaxReconnectAttempts
	}
	return *s.MaxReconnectAttempts
}

// ArchiveConfig holds the stream_events archive settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	QueueSize     int           `yaml:"queue_size"`
	QueueMax      int           `yaml:"queue_max"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// MetricsConfig holds the HTTP server settings for /metrics, /health and /debug.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}
