package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager multiplexes named endpoint streams, one WebSocket connection each.
type Manager interface {
	// Connect registers an endpoint and starts connecting in the background.
	// An existing registration for the same endpoint is torn down first.
	Connect(opts Options) (DisconnectFunc, error)

	// Disconnect tears down an endpoint. Unknown endpoints are a no-op.
	Disconnect(endpoint string)

	// DisconnectAll tears down every endpoint.
	DisconnectAll()

	// Send JSON-encodes v and writes it to an open endpoint.
	Send(endpoint string, v any) error

	// Status returns the lifecycle state of an endpoint (StatusIdle when unknown).
	Status(endpoint string) Status

	// Endpoints describes every registered endpoint.
	Endpoints() []EndpointInfo

	// Stats returns current connection statistics.
	Stats() ManagerStats

	// Close tears down every endpoint, rejects further Connect calls and waits
	// for background goroutines to exit.
	Close(ctx context.Context) error
}

// ManagerOption configures a Manager.
type ManagerOption func(*manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) ManagerOption {
	return func(m *manager) {
		m.dialer = d
	}
}

// WithClock replaces the clock used for reconnect timers.
func WithClock(c Clock) ManagerOption {
	return func(m *manager) {
		m.clock = c
	}
}

// WithObserver sets the instrumentation hooks.
func WithObserver(o Observer) ManagerOption {
	return func(m *manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// manager implements the Manager interface.
type manager struct {
	cfg      ManagerConfig
	logger   *slog.Logger
	dialer   Dialer
	clock    Clock
	observer Observer

	mu       sync.Mutex
	registry *registry
	closed   bool

	// Dial and read goroutines
	wg sync.WaitGroup
}

// NewManager creates a new connection Manager.
func NewManager(cfg ManagerConfig, opts ...ManagerOption) Manager {
	cfg.applyDefaults()

	m := &manager{
		cfg:      cfg,
		logger:   slog.Default(),
		clock:    realClock{},
		observer: nopObserver{},
		registry: newRegistry(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(m)
	}

	if m.dialer == nil {
		m.dialer = NewWSDialer(cfg, m.logger)
	}

	return m
}

// Connect registers the endpoint and starts the first attempt.
func (m *manager) Connect(opts Options) (DisconnectFunc, error) {
	if opts.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if opts.OnMessage == nil {
		return nil, ErrNilHandler
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = m.cfg.ReconnectDelay
	}
	if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = m.cfg.MaxReconnectAttempts
	}

	url, urlErr := ResolveURL(m.cfg.BaseURL, m.cfg.Origin, opts.Endpoint)
	st := newEndpointState(opts, url, urlErr, m.logger.With("endpoint", opts.Endpoint))

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	prior, _ := m.registry.lookup(opts.Endpoint)
	stale := m.registry.register(opts.Endpoint, st)
	m.startAttemptLocked(st)
	m.mu.Unlock()

	if stale != nil {
		st.logger.Info("replacing existing connection")
		m.finishTeardown(prior, stale)
	}

	return func() { m.teardown(st) }, nil
}

// Disconnect tears down the current registration of endpoint.
func (m *manager) Disconnect(endpoint string) {
	m.mu.Lock()
	st, ok := m.registry.lookup(endpoint)
	m.mu.Unlock()

	if ok {
		m.teardown(st)
	}
}

// DisconnectAll tears down every endpoint.
func (m *manager) DisconnectAll() {
	for _, c := range m.detachAll(false) {
		m.finishTeardown(c.st, c.t)
	}
}

// Close tears down everything and waits for goroutines.
func (m *manager) Close(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	for _, c := range m.detachAll(true) {
		m.finishTeardown(c.st, c.t)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
		return ctx.Err()
	}
}

// Send writes v as a JSON text frame.
func (m *manager) Send(endpoint string, v any) error {
	m.mu.Lock()
	st, ok := m.registry.lookup(endpoint)
	var t Transport
	if ok && st.status == StatusOpen {
		t = st.transport
	}
	m.mu.Unlock()

	if t == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	if err := t.WriteMessage(data); err != nil {
		return fmt.Errorf("send to %s: %w", endpoint, err)
	}
	return nil
}

// Status returns the endpoint's lifecycle state.
func (m *manager) Status(endpoint string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.registry.lookup(endpoint)
	if !ok {
		return StatusIdle
	}
	return st.status
}

// Endpoints describes every registered endpoint.
func (m *manager) Endpoints() []EndpointInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.registry.all()
	out := make([]EndpointInfo, 0, len(all))
	for _, st := range all {
		out = append(out, st.info())
	}
	return out
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ManagerStats{Registered: m.registry.len()}
	for _, st := range m.registry.all() {
		switch st.status {
		case StatusOpen:
			stats.Open++
		case StatusReconnecting:
			stats.Reconnecting++
		case StatusGivenUp:
			stats.GivenUp++
		}
	}
	return stats
}

// teardown cancels the pending timer, closes the live transport with a normal
// close code and removes the registration. Safe to call repeatedly.
func (m *manager) teardown(st *endpointState) {
	m.mu.Lock()
	if st.removed {
		m.mu.Unlock()
		return
	}
	if m.registry.current(st) {
		m.registry.remove(st.opts.Endpoint)
	}
	t := st.detach()
	m.mu.Unlock()

	if t != nil {
		m.finishTeardown(st, t)
	}
	st.logger.Info("disconnected")
}

// closing is a detached registration whose transport still has to be closed.
type closing struct {
	st *endpointState
	t  Transport
}

// detachAll detaches every registration and returns the transports to close.
func (m *manager) detachAll(closeManager bool) []closing {
	m.mu.Lock()
	defer m.mu.Unlock()

	if closeManager {
		m.closed = true
	}

	var live []closing
	for _, st := range m.registry.all() {
		m.registry.remove(st.opts.Endpoint)
		if t := st.detach(); t != nil {
			live = append(live, closing{st: st, t: t})
		}
	}
	return live
}

// finishTeardown closes a transport handed back by detach and moves its
// registration from Closing to Closed.
func (m *manager) finishTeardown(st *endpointState, t Transport) {
	closeTransport(t, st.logger)
	m.observer.Disconnected(st.opts.Endpoint, CloseNormal)

	m.mu.Lock()
	st.status = StatusClosed
	m.mu.Unlock()
}

// startAttemptLocked moves st to connecting and dials in the background.
// Must be called with the lock held.
func (m *manager) startAttemptLocked(st *endpointState) {
	st.status = StatusConnecting
	m.wg.Add(1)
	go m.open(st)
}

// open dials the endpoint and, on success, runs the read loop.
func (m *manager) open(st *endpointState) {
	defer m.wg.Done()

	endpoint := st.opts.Endpoint
	m.observer.ConnectAttempt(endpoint)
	st.logger.Info("connecting", "url", st.url)

	t, err := m.dial(st)
	if err != nil {
		m.mu.Lock()
		current := m.registry.current(st)
		m.mu.Unlock()
		if !current {
			// Torn down while dialing
			return
		}

		st.logger.Warn("connection failed", "url", st.url, "error", err)
		if st.opts.OnError != nil {
			st.opts.OnError(err)
		}
		m.handleClose(st, nil, &CloseError{Code: CloseAbnormal, Reason: err.Error()})
		return
	}

	connID := uuid.NewString()

	m.mu.Lock()
	if !m.registry.current(st) {
		m.mu.Unlock()
		closeTransport(t, st.logger)
		return
	}
	st.transport = t
	st.connID = connID
	st.status = StatusOpen
	st.attempts = 0
	st.connectedAt = time.Now()
	// Under the lock so a concurrent teardown reports Disconnected after this
	m.observer.Connected(endpoint)
	m.mu.Unlock()

	st.logger.Info("connection established", "conn_id", connID)

	if st.opts.OnConnect != nil && m.isLive(st, t) {
		st.opts.OnConnect()
	}

	m.readLoop(st, t, connID)
}

// dial resolves construction failures and dials the transport.
func (m *manager) dial(st *endpointState) (Transport, error) {
	if st.urlErr != nil {
		return nil, fmt.Errorf("build url: %w", st.urlErr)
	}
	t, err := m.dialer.Dial(st.ctx, st.url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", st.url, err)
	}
	return t, nil
}

// readLoop reads frames until the transport ends, then hands the close to handleClose.
func (m *manager) readLoop(st *endpointState, t Transport, connID string) {
	d := &dispatcher{
		endpoint: st.opts.Endpoint,
		handler:  st.opts.OnMessage,
		logger:   st.logger,
		observer: m.observer,
	}

	for {
		data, err := t.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after teardown or replacement
			if !m.isLive(st, t) {
				return
			}

			ce, isClose := closeErrorFrom(err)
			if !isClose {
				st.logger.Warn("websocket read error", "conn_id", connID, "error", err)
				if st.opts.OnError != nil {
					st.opts.OnError(err)
				}
			} else if !ce.Normal() && st.opts.OnError != nil {
				st.opts.OnError(ce)
			}

			m.handleClose(st, t, ce)
			return
		}

		if !m.isLive(st, t) {
			return
		}
		d.dispatch(connID, data, receivedAt)
	}
}

// handleClose decides between stopping, reconnecting and giving up after a
// transport ended (t is nil when the dial itself failed).
func (m *manager) handleClose(st *endpointState, t Transport, ce *CloseError) {
	endpoint := st.opts.Endpoint

	m.mu.Lock()
	if !m.registry.current(st) || st.transport != t {
		m.mu.Unlock()
		return
	}
	st.transport = nil
	st.connID = ""

	var (
		delay   time.Duration
		attempt int
		retry   bool
		givenUp bool
	)

	switch {
	case ce.Normal():
		st.status = StatusClosed

	case ShouldReconnect(st.attempts, st.opts.MaxReconnectAttempts):
		attempt = st.attempts
		delay = ReconnectDelay(st.opts.ReconnectDelay, attempt)
		retry = true

		st.status = StatusReconnecting
		st.timerSeq++
		seq := st.timerSeq
		st.timer = m.clock.AfterFunc(delay, func() {
			m.retry(st, seq)
		})

	default:
		st.status = StatusGivenUp
		givenUp = true
	}
	attempts := st.attempts
	m.mu.Unlock()

	m.observer.Disconnected(endpoint, ce.Code)
	if st.opts.OnClose != nil {
		st.opts.OnClose(ce)
	}

	switch {
	case ce.Normal():
		st.logger.Info("connection closed", "code", ce.Code)

	case retry:
		m.observer.ReconnectScheduled(endpoint, attempt+1, delay)
		st.logger.Info("scheduling reconnection",
			"code", ce.Code,
			"attempt", attempt+1,
			"max_attempts", st.opts.MaxReconnectAttempts,
			"delay", delay,
		)

	case givenUp:
		m.observer.GaveUp(endpoint)
		st.logger.Error("maximum reconnection attempts reached",
			"code", ce.Code,
			"attempts", attempts,
			"max_attempts", st.opts.MaxReconnectAttempts,
		)
		if st.opts.OnGiveUp != nil {
			st.opts.OnGiveUp(attempts)
		}
	}
}

// retry fires a scheduled reconnect unless the endpoint was torn down or the
// timer was superseded.
func (m *manager) retry(st *endpointState, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registry.current(st) || st.status != StatusReconnecting || st.timerSeq != seq {
		return
	}
	st.timer = nil
	st.attempts++
	m.startAttemptLocked(st)
}

// isLive reports whether t is still the live transport of the current registration.
func (m *manager) isLive(st *endpointState, t Transport) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.current(st) && st.transport == t
}

// closeTransport closes t with the normal close code.
func closeTransport(t Transport, logger *slog.Logger) {
	if err := t.Close(CloseNormal, normalCloseReason); err != nil {
		logger.Debug("error closing websocket", "error", err)
	}
}
