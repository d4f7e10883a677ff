// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection attempts, open connections, disconnects by close code
//   - Scheduled reconnects with their delay, give-ups
//   - Dispatched and dropped frames per endpoint
//   - Router and archive counters, read from their Stats at scrape time
package metrics
