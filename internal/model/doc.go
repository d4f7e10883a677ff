// Package model defines the envelope and entity types carried on the office feeds.
//
// Every frame on /ws/documents, /ws/analytics and /ws/workflows is a JSON envelope:
//
//	{"type": "document" | "analytics" | "workflow", "payload": {...}}
//
// Conventions:
//   - Timestamps: ISO-8601 strings as sent by the backend, kept verbatim
//   - Counters: int, ratios and durations: float64
//   - Optional fields use omitempty and are zero when absent
package model
