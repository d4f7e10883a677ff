// Package connection implements the multiplexed stream client.
//
// The Manager:
//   - Keeps one WebSocket connection per logical endpoint (/ws/documents, /ws/analytics, ...)
//   - Decodes every inbound text frame as JSON and hands it to the endpoint's handler
//   - Reconnects after abnormal closure with exponential backoff (base * 1.5^attempt)
//   - Gives up after a per-endpoint attempt ceiling
//   - Tears endpoints down idempotently, cancelling pending reconnect timers first
package connection
