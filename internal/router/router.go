package router

import (
	"log/slog"
	"sync"

	"github.com/rickgao/officefeed/internal/connection"
	"github.com/rickgao/officefeed/internal/model"
)

// Router applies feed frames to the dashboard board.
type Router interface {
	// Handle routes one decoded frame. It is a connection.MessageHandler.
	Handle(msg connection.Message)

	// Options returns connection options for endpoint with every callback
	// wired to this router.
	Options(endpoint string) connection.Options

	// Board returns a copy of the current dashboard state.
	Board() Board

	// Events returns the archive queue, or nil when archiving is disabled.
	Events() *Queue[Event]

	// Stats returns current router statistics.
	Stats() RouterStats

	// Bind wraps the DisconnectFunc returned for endpoint so that tearing the
	// stream down also marks it stopped on the board.
	Bind(endpoint string, stop connection.DisconnectFunc) connection.DisconnectFunc

	// Close closes the archive queue and marks every stream stopped.
	Close()
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	board  *board
	events *Queue[Event]

	mu              sync.RWMutex
	received        int64
	routed          int64
	parseErrors     int64
	unknownMessages int64
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	r := &router{
		cfg:    cfg,
		logger: logger,
		board:  newBoard(cfg.AnalyticsWindow, cfg.WorkflowWindow),
	}
	if cfg.Archive {
		r.events = NewQueue[Event](cfg.ArchiveQueueSize, cfg.ArchiveQueueMax)
	}
	return r
}

// Options wires the endpoint's callbacks to the board.
func (r *router) Options(endpoint string) connection.Options {
	r.board.register(endpoint)
	logger := r.logger.With("endpoint", endpoint)

	return connection.Options{
		Endpoint:  endpoint,
		OnMessage: r.Handle,
		OnConnect: func() {
			logger.Info("stream connected")
			r.board.setConnected(endpoint)
		},
		OnError: func(err error) {
			logger.Warn("stream error", "error", err)
			r.board.setDisconnected(endpoint, ConnectionLostText)
		},
		OnClose: func(ce *connection.CloseError) {
			r.board.setDisconnected(endpoint, "")
		},
		OnGiveUp: func(attempts int) {
			logger.Error("stream gave up", "attempts", attempts)
			r.board.setDisconnected(endpoint, GaveUpText)
		},
	}
}

// Handle decodes the envelope and applies it.
func (r *router) Handle(msg connection.Message) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	r.board.markMessage(msg.Endpoint, msg.ReceivedAt)

	env, err := model.DecodeEnvelope(msg.Raw)
	if err != nil {
		r.parseError(msg.Endpoint, "failed to decode envelope", err)
		return
	}

	switch env.Type {
	case model.TypeDocument:
		d, err := env.Document()
		if err != nil {
			r.parseError(msg.Endpoint, "failed to parse document", err)
			return
		}
		r.board.setDocument(d)

	case model.TypeAnalytics:
		a, err := env.Analytics()
		if err != nil {
			r.parseError(msg.Endpoint, "failed to parse analytics", err)
			return
		}
		r.board.addAnalytics(a)

	case model.TypeWorkflow:
		w, err := env.Workflow()
		if err != nil {
			r.parseError(msg.Endpoint, "failed to parse workflow", err)
			return
		}
		r.board.addWorkflow(w)

	default:
		r.logger.Debug("skipping message type", "endpoint", msg.Endpoint, "type", env.Type)
		r.mu.Lock()
		r.unknownMessages++
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.routed++
	r.mu.Unlock()

	if r.events != nil {
		r.events.Send(Event{
			Endpoint:     msg.Endpoint,
			ConnectionID: msg.ConnectionID,
			Type:         env.Type,
			Payload:      env.Payload,
			ReceivedAt:   msg.ReceivedAt,
		})
	}
}

func (r *router) parseError(endpoint, what string, err error) {
	r.logger.Warn(what, "endpoint", endpoint, "error", err)

	r.mu.Lock()
	r.parseErrors++
	r.mu.Unlock()
}

// Board returns a copy of the dashboard state.
func (r *router) Board() Board {
	return r.board.snapshot()
}

// Events returns the archive queue.
func (r *router) Events() *Queue[Event] {
	return r.events
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RouterStats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		UnknownMessages:  r.unknownMessages,
	}
	if r.events != nil {
		stats.ArchiveQueue = r.events.Stats()
	}
	return stats
}

// Bind marks the stream stopped after stop has torn it down.
func (r *router) Bind(endpoint string, stop connection.DisconnectFunc) connection.DisconnectFunc {
	return func() {
		stop()
		r.board.setStopped(endpoint)
	}
}

// Close closes the archive queue and marks every stream stopped.
func (r *router) Close() {
	if r.events != nil {
		r.events.Close()
	}
	r.board.stopAll()
}
