package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrEmptyEndpoint = errors.New("endpoint is required")
	ErrNilHandler    = errors.New("message handler is required")
	ErrNotConnected  = errors.New("not connected")
	ErrNoBaseURL     = errors.New("no base url or origin configured")
	ErrClosed        = errors.New("manager closed")
)

// Close codes used by the manager.
const (
	CloseNormal   = 1000 // Intentional teardown; never triggers a reconnect
	CloseAbnormal = 1006 // Connection dropped without a close frame

	normalCloseReason = "Normal closure"
)

// Defaults applied when Options or ManagerConfig leave a field zero.
const (
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second

	// NoReconnect disables reconnection for an endpoint when used as MaxReconnectAttempts.
	NoReconnect = -1
)

// CloseError reports how a transport ended.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("connection closed (code %d)", e.Code)
	}
	return fmt.Sprintf("connection closed (code %d): %s", e.Code, e.Reason)
}

// Normal reports whether the close was intentional.
func (e *CloseError) Normal() bool {
	return e.Code == CloseNormal
}

// Message is a decoded inbound frame.
type Message struct {
	Endpoint     string          // Endpoint the frame arrived on
	ConnectionID string          // Transport instance that received it
	Value        any             // Decoded JSON value
	Raw          json.RawMessage // Frame bytes (valid JSON)
	ReceivedAt   time.Time       // Local timestamp when the frame was read
}

// MessageHandler receives every well-formed frame of one endpoint, in arrival order.
type MessageHandler func(msg Message)

// Options configures one endpoint. They are captured by Connect and reused verbatim
// for every reconnect of that endpoint.
type Options struct {
	Endpoint  string         // Path appended to the base URL, e.g. "/ws/documents"
	OnMessage MessageHandler // Required

	OnError   func(err error)       // Transport errors, dial failures, abnormal closes
	OnConnect func()                // Each successful open
	OnGiveUp  func(attempts int)    // Attempt ceiling reached; no more retries
	OnClose   func(err *CloseError) // Closes not caused by teardown, normal or not

	ReconnectDelay       time.Duration // Backoff base; 0 uses the manager default
	MaxReconnectAttempts int           // 0 uses the manager default, NoReconnect disables retries
}

// DisconnectFunc tears down the endpoint it was returned for. Safe to call repeatedly.
type DisconnectFunc func()

// Status is the lifecycle state of an endpoint.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusOpen         Status = "open"
	StatusClosing      Status = "closing"      // Torn down, close frame being sent
	StatusReconnecting Status = "reconnecting" // Closed abnormally, retry timer pending
	StatusClosed       Status = "closed"       // Closed normally; terminal
	StatusGivenUp      Status = "given_up"     // Attempt ceiling reached; terminal
)

// EndpointInfo describes one registered endpoint.
type EndpointInfo struct {
	Endpoint     string
	URL          string
	Status       Status
	Attempts     int
	ConnectionID string
	ConnectedAt  time.Time
}

// ManagerStats provides statistics about the manager.
type ManagerStats struct {
	Registered   int
	Open         int
	Reconnecting int
	GivenUp      int
}

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	BaseURL              string        // e.g. ws://localhost:8000; empty derives from Origin
	Origin               string        // e.g. https://dash.example.com, used when BaseURL is empty
	ReconnectDelay       time.Duration // Default backoff base
	MaxReconnectAttempts int           // Default attempt ceiling
	HandshakeTimeout     time.Duration // Dial handshake timeout
	WriteTimeout         time.Duration // Write deadline for sends
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		WriteTimeout:         DefaultWriteTimeout,
	}
}

func (c *ManagerConfig) applyDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}
