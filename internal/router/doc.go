// Package router turns feed frames into dashboard state.
//
// Each frame delivered by the connection manager is decoded as a model.Envelope
// and applied to the board:
//   - document: replaces the latest document
//   - analytics: appended to a sliding window (last 20 points)
//   - workflow: replaces any entry with the same workflow_id, last 5 kept
//
// Unknown envelope types are counted and ignored. Every routed envelope is also
// queued as an Event for the archive when archiving is enabled.
package router
