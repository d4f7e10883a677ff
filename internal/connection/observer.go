package connection

import "time"

// Observer receives lifecycle events for instrumentation.
// Implementations must be safe for concurrent use and must not call back into
// the Manager: Connected is invoked with the manager lock held.
type Observer interface {
	ConnectAttempt(endpoint string)
	Connected(endpoint string)
	Disconnected(endpoint string, code int)
	ReconnectScheduled(endpoint string, attempt int, delay time.Duration)
	GaveUp(endpoint string)
	MessageReceived(endpoint string)
	MessageDropped(endpoint string)
}

type nopObserver struct{}

func (nopObserver) ConnectAttempt(string)                         {}
func (nopObserver) Connected(string)                              {}
func (nopObserver) Disconnected(string, int)                      {}
func (nopObserver) ReconnectScheduled(string, int, time.Duration) {}
func (nopObserver) GaveUp(string)                                 {}
func (nopObserver) MessageReceived(string)                        {}
func (nopObserver) MessageDropped(string)                         {}
