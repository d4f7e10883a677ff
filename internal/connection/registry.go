package connection

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// endpointState holds the state for a single endpoint registration.
type endpointState struct {
	opts   Options
	url    string
	urlErr error // Set when the URL could not be resolved; each attempt fails with it
	logger *slog.Logger

	status      Status
	attempts    int // Consecutive failed attempts since the last successful open
	transport   Transport
	connID      string
	connectedAt time.Time

	// Pending reconnect
	timer    Timer
	timerSeq uint64

	// Cancelled on teardown to abort an in-flight dial
	ctx    context.Context
	cancel context.CancelFunc

	removed bool
}

func newEndpointState(opts Options, url string, urlErr error, logger *slog.Logger) *endpointState {
	ctx, cancel := context.WithCancel(context.Background())
	return &endpointState{
		opts:   opts,
		url:    url,
		urlErr: urlErr,
		logger: logger,
		status: StatusIdle,
		ctx:    ctx,
		cancel: cancel,
	}
}

// detach cancels the pending timer and any in-flight dial, marks the state removed
// and hands back the live transport for the caller to close. The state is left
// Closing while a transport is handed back, Closed otherwise. Must be called with
// the manager lock held.
func (st *endpointState) detach() Transport {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.cancel()
	st.removed = true

	t := st.transport
	st.transport = nil
	st.connID = ""
	if t != nil {
		st.status = StatusClosing
	} else {
		st.status = StatusClosed
	}
	return t
}

func (st *endpointState) info() EndpointInfo {
	return EndpointInfo{
		Endpoint:     st.opts.Endpoint,
		URL:          st.url,
		Status:       st.status,
		Attempts:     st.attempts,
		ConnectionID: st.connID,
		ConnectedAt:  st.connectedAt,
	}
}

// registry maps endpoints to their current registration. It is not safe for
// concurrent use; the manager guards it with its lock.
type registry struct {
	entries map[string]*endpointState
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*endpointState)}
}

// register installs st as the current entry for endpoint. A prior entry is detached
// and its transport returned so the caller can close it.
func (r *registry) register(endpoint string, st *endpointState) Transport {
	var stale Transport
	if prior, ok := r.entries[endpoint]; ok && prior != st {
		stale = prior.detach()
	}
	r.entries[endpoint] = st
	return stale
}

// lookup returns the current entry for endpoint.
func (r *registry) lookup(endpoint string) (*endpointState, bool) {
	st, ok := r.entries[endpoint]
	return st, ok
}

// remove deletes the entry for endpoint without touching its transport.
func (r *registry) remove(endpoint string) {
	delete(r.entries, endpoint)
}

// current reports whether st is still the registered entry for its endpoint.
func (r *registry) current(st *endpointState) bool {
	if st.removed {
		return false
	}
	cur, ok := r.entries[st.opts.Endpoint]
	return ok && cur == st
}

// all returns every entry sorted by endpoint.
func (r *registry) all() []*endpointState {
	out := make([]*endpointState, 0, len(r.entries))
	for _, st := range r.entries {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].opts.Endpoint < out[j].opts.Endpoint
	})
	return out
}

func (r *registry) len() int {
	return len(r.entries)
}
