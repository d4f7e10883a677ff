package router

import (
	"encoding/json"
	"time"

	"github.com/rickgao/officefeed/internal/model"
)

// Stream error texts shown on the board.
const (
	ConnectionLostText = "Connection lost. Attempting to reconnect..."
	GaveUpText         = "Connection lost. Reconnection attempts exhausted."
)

// RouterConfig holds configuration for the Router.
type RouterConfig struct {
	AnalyticsWindow int // Default: 20
	WorkflowWindow  int // Default: 5

	// Archive queue. Disabled when Archive is false.
	Archive          bool
	ArchiveQueueSize int // Initial capacity. Default: 256
	ArchiveQueueMax  int // Oldest events are dropped beyond this. Default: 65536
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		AnalyticsWindow:  20,
		WorkflowWindow:   5,
		ArchiveQueueSize: 256,
		ArchiveQueueMax:  65536,
	}
}

func (c *RouterConfig) applyDefaults() {
	d := DefaultRouterConfig()
	if c.AnalyticsWindow <= 0 {
		c.AnalyticsWindow = d.AnalyticsWindow
	}
	if c.WorkflowWindow <= 0 {
		c.WorkflowWindow = d.WorkflowWindow
	}
	if c.ArchiveQueueSize <= 0 {
		c.ArchiveQueueSize = d.ArchiveQueueSize
	}
	if c.ArchiveQueueMax <= 0 {
		c.ArchiveQueueMax = d.ArchiveQueueMax
	}
}

// Event is a routed envelope handed to the archive.
type Event struct {
	Endpoint     string
	ConnectionID string
	Type         string
	Payload      json.RawMessage
	ReceivedAt   time.Time
}

// StreamState is the per-endpoint connection indicator.
type StreamState struct {
	Endpoint      string    `json:"endpoint"`
	Name          string    `json:"name"` // Last path segment, e.g. "documents"
	Connected     bool      `json:"connected"`
	Error         string    `json:"error,omitempty"`
	Messages      int64     `json:"messages"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
}

// Board is a point-in-time copy of the dashboard state.
type Board struct {
	Document  *model.Document   `json:"document,omitempty"`
	Analytics []model.Analytics `json:"analytics"`
	Workflows []model.Workflow  `json:"workflows"`
	Streams   []StreamState     `json:"streams"`
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	MessagesRouted   int64
	ParseErrors      int64
	UnknownMessages  int64
	ArchiveQueue     QueueStats
}
