package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a single live socket to one endpoint.
type Transport interface {
	// ReadMessage blocks until the next text frame arrives or the socket ends.
	// When the socket ends the error is a *CloseError or a transport error.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one text frame.
	WriteMessage(data []byte) error

	// Close sends a close frame with the given code and closes the socket.
	Close(code int, reason string) error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WSDialer dials gorilla/websocket connections.
type WSDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Header           http.Header
	Logger           *slog.Logger
}

// NewWSDialer creates a dialer using the manager's timeouts.
func NewWSDialer(cfg ManagerConfig, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &WSDialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		Logger:           logger,
	}
}

// Dial establishes the WebSocket connection.
func (d *WSDialer) Dial(ctx context.Context, url string) (Transport, error) {
	header := d.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	t := &wsTransport{
		conn:         conn,
		writeTimeout: d.WriteTimeout,
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		t.writeMu.Lock()
		defer t.writeMu.Unlock()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if err != nil && d.Logger != nil {
			d.Logger.Debug("failed to send pong", "url", url, "error", err)
		}
		return nil
	})

	return t, nil
}

// wsTransport adapts *websocket.Conn to Transport.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	// Write serialization
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, translateReadError(err)
		}
		if kind != websocket.TextMessage {
			// Only JSON text frames are part of the protocol
			continue
		}
		return data, nil
	}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close(code int, reason string) error {
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		werr := t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		t.writeMu.Unlock()

		cerr := t.conn.Close()
		switch {
		case werr != nil:
			t.closeErr = fmt.Errorf("send close frame: %w", werr)
		case cerr != nil:
			t.closeErr = cerr
		}
	})
	return t.closeErr
}

// translateReadError maps gorilla close errors to *CloseError and leaves
// other transport errors untouched.
func translateReadError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Reason: ce.Text}
	}
	return err
}

// closeErrorFrom classifies why a read loop ended. Errors that are not close frames
// count as abnormal closure.
func closeErrorFrom(err error) (*CloseError, bool) {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce, true
	}
	return &CloseError{Code: CloseAbnormal, Reason: err.Error()}, false
}
