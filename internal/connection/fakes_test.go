package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var errLocalClose = errors.New("use of closed network connection")

// fakeTransport is an in-memory Transport. Frames and server-side endings are
// injected through unbuffered channels so they are observed in order.
type fakeTransport struct {
	frames chan []byte
	ends   chan error
	closed chan struct{}
	once   sync.Once

	mu         sync.Mutex
	closeCalls int
	closeCode  int
	writes     [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte),
		ends:   make(chan error),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-t.frames:
		return data, nil
	case err := <-t.ends:
		return nil, err
	case <-t.closed:
		return nil, errLocalClose
	}
}

func (t *fakeTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, data)
	return nil
}

func (t *fakeTransport) Close(code int, reason string) error {
	t.mu.Lock()
	t.closeCalls++
	t.closeCode = code
	t.mu.Unlock()
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) closeInfo() (calls, code int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCalls, t.closeCode
}

func (t *fakeTransport) written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.writes...)
}

// push delivers a frame to the read loop.
func (t *fakeTransport) push(tb testing.TB, data string) {
	tb.Helper()
	select {
	case t.frames <- []byte(data):
	case <-time.After(2 * time.Second):
		tb.Fatalf("read loop did not accept frame %q", data)
	}
}

// end terminates the read loop from the server side.
func (t *fakeTransport) end(tb testing.TB, err error) {
	tb.Helper()
	select {
	case t.ends <- err:
	case <-time.After(2 * time.Second):
		tb.Fatalf("read loop did not accept end %v", err)
	}
}

// fakeDialer hands out fakeTransports. fail, when set, decides per dial index
// whether the dial fails.
type fakeDialer struct {
	mu         sync.Mutex
	urls       []string
	transports []*fakeTransport
	fail       func(n int) error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Transport, error) {
	d.mu.Lock()
	n := len(d.urls)
	d.urls = append(d.urls, url)
	fail := d.fail
	d.mu.Unlock()

	if fail != nil {
		if err := fail(n); err != nil {
			return nil, err
		}
	}

	t := newFakeTransport()
	d.mu.Lock()
	d.transports = append(d.transports, t)
	d.mu.Unlock()
	return t, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return ""
	}
	return d.urls[len(d.urls)-1]
}

func (d *fakeDialer) transport(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.transports) {
		return nil
	}
	return d.transports[i]
}

func (d *fakeDialer) transportCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

// fakeClock records timers and fires them on demand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	fn      func()
	fired   bool
	stopped bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// pending returns the number of timers neither fired nor stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// delays returns the delay of every timer ever scheduled, in order.
func (c *fakeClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.delay)
	}
	return out
}

// fireNext runs the oldest pending timer. It reports false when none is pending.
func (c *fakeClock) fireNext() bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			next = t
			break
		}
	}
	if next == nil {
		c.mu.Unlock()
		return false
	}
	next.fired = true
	c.mu.Unlock()

	next.fn()
	return true
}

// recorder captures callbacks.
type recorder struct {
	mu       sync.Mutex
	messages []Message
	errs     []error
	connects int
	closes   []*CloseError
	gaveUp   []int

	msgCh     chan Message
	connectCh chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		msgCh:     make(chan Message, 100),
		connectCh: make(chan struct{}, 100),
	}
}

func (r *recorder) options(endpoint string) Options {
	return Options{
		Endpoint: endpoint,
		OnMessage: func(msg Message) {
			r.mu.Lock()
			r.messages = append(r.messages, msg)
			r.mu.Unlock()
			r.msgCh <- msg
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnConnect: func() {
			r.mu.Lock()
			r.connects++
			r.mu.Unlock()
			r.connectCh <- struct{}{}
		},
		OnClose: func(ce *CloseError) {
			r.mu.Lock()
			r.closes = append(r.closes, ce)
			r.mu.Unlock()
		},
		OnGiveUp: func(attempts int) {
			r.mu.Lock()
			r.gaveUp = append(r.gaveUp, attempts)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recorder) errorList() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) connectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

func (r *recorder) giveUps() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.gaveUp...)
}

func (r *recorder) waitConnect(tb testing.TB) {
	tb.Helper()
	select {
	case <-r.connectCh:
	case <-time.After(2 * time.Second):
		tb.Fatal("timeout waiting for connect")
	}
}

func (r *recorder) waitMessage(tb testing.TB) Message {
	tb.Helper()
	select {
	case msg := <-r.msgCh:
		return msg
	case <-time.After(2 * time.Second):
		tb.Fatal("timeout waiting for message")
	}
	return Message{}
}

// waitFor polls cond until it holds or fails the test.
func waitFor(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	tb.Fatalf("timeout waiting for %s", what)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager builds a manager with fake transport and clock.
func newTestManager(cfg ManagerConfig, dialer *fakeDialer, clock *fakeClock) *manager {
	if cfg.BaseURL == "" && cfg.Origin == "" {
		cfg.BaseURL = "ws://localhost:8000"
	}
	return NewManager(cfg,
		WithDialer(dialer),
		WithClock(clock),
		WithLogger(discardLogger()),
	).(*manager)
}
