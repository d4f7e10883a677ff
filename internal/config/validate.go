package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Stream.validate("stream"); err != nil {
		return err
	}

	if c.Archive.Enabled {
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.FlushInterval <= 0 {
			return errors.New("archive.flush_interval must be > 0")
		}
		if c.Archive.QueueMax < c.Archive.QueueSize {
			return fmt.Errorf("archive.queue_size (%d) cannot exceed queue_max (%d)", c.Archive.QueueSize, c.Archive.QueueMax)
		}
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (s *StreamConfig) validate(prefix string) error {
	if s.BaseURL == "" && s.Origin == "" {
		return fmt.Errorf("%s.base_url or %s.origin is required", prefix, prefix)
	}
	if s.BaseURL != "" {
		if err := checkScheme(s.BaseURL, "ws", "wss"); err != nil {
			return fmt.Errorf("%s.base_url: %w", prefix, err)
		}
	}
	if s.Origin != "" {
		if err := checkScheme(s.Origin, "http", "https"); err != nil {
			return fmt.Errorf("%s.origin: %w", prefix, err)
		}
	}

	if s.ReconnectDelay <= 0 {
		return fmt.Errorf("%s.reconnect_delay must be > 0", prefix)
	}
	if n := s.Attempts(); n < 0 {
		return fmt.Errorf("%s.max_reconnect_attempts must be >= 0, got %d", prefix, n)
	}

	if len(s.Endpoints) == 0 {
		return fmt.Errorf("%s.endpoints must not be empty", prefix)
	}
	seen := make(map[string]bool, len(s.Endpoints))
	for i, ep := range s.Endpoints {
		if !strings.HasPrefix(ep, "/") {
			return fmt.Errorf("%s.endpoints[%d] must start with /, got %q", prefix, i, ep)
		}
		if seen[ep] {
			return fmt.Errorf("%s.endpoints[%d] duplicates %q", prefix, i, ep)
		}
		seen[ep] = true
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func checkScheme(raw string, allowed ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range allowed {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%q has no host", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %s, got %q", strings.Join(allowed, ", "), u.Scheme)
}
