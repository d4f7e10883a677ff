package connection

import (
	"encoding/json"
	"log/slog"
	"time"
)

// dispatcher decodes frames of one endpoint and forwards them to its handler.
type dispatcher struct {
	endpoint string
	handler  MessageHandler
	logger   *slog.Logger
	observer Observer
}

// dispatch decodes one frame and invokes the handler synchronously.
// Malformed frames are logged and dropped; it reports whether the handler ran.
// Handler panics propagate to the caller.
func (d *dispatcher) dispatch(connID string, data []byte, receivedAt time.Time) bool {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		d.logger.Error("failed to parse message",
			"conn_id", connID,
			"size", len(data),
			"error", err,
		)
		d.observer.MessageDropped(d.endpoint)
		return false
	}

	d.observer.MessageReceived(d.endpoint)
	d.handler(Message{
		Endpoint:     d.endpoint,
		ConnectionID: connID,
		Value:        value,
		Raw:          json.RawMessage(data),
		ReceivedAt:   receivedAt,
	})
	return true
}
