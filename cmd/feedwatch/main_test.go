package main

import (
	"testing"
	"time"

	"github.com/rickgao/officefeed/internal/config"
	"github.com/rickgao/officefeed/internal/connection"
)

func TestManagerConfig(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name     string
		attempts *int
		want     int
	}{
		{"unset uses default", nil, config.DefaultMaxReconnectAttempts},
		{"zero disables reconnects", intPtr(0), connection.NoReconnect},
		{"explicit ceiling", intPtr(8), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.StreamConfig{
				BaseURL:              "ws://localhost:8000",
				ReconnectDelay:       2 * time.Second,
				MaxReconnectAttempts: tt.attempts,
			}

			got := managerConfig(s)
			if got.MaxReconnectAttempts != tt.want {
				t.Errorf("MaxReconnectAttempts = %d, want %d", got.MaxReconnectAttempts, tt.want)
			}
			if got.BaseURL != s.BaseURL || got.ReconnectDelay != s.ReconnectDelay {
				t.Errorf("managerConfig() = %+v", got)
			}
		})
	}
}
