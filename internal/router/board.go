package router

import (
	"path"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/officefeed/internal/model"
)

// board holds the latest dashboard state. Safe for concurrent use.
type board struct {
	mu sync.RWMutex

	analyticsWindow int
	workflowWindow  int

	document  *model.Document
	analytics []model.Analytics
	workflows []model.Workflow
	streams   map[string]*StreamState
}

func newBoard(analyticsWindow, workflowWindow int) *board {
	return &board{
		analyticsWindow: analyticsWindow,
		workflowWindow:  workflowWindow,
		streams:         make(map[string]*StreamState),
	}
}

func (b *board) setDocument(d model.Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.document = &d
}

func (b *board) addAnalytics(a model.Analytics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analytics = lastN(append(b.analytics, a), b.analyticsWindow)
}

// addWorkflow replaces any entry with the same workflow_id and appends w as newest.
func (b *board) addWorkflow(w model.Workflow) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := make([]model.Workflow, 0, len(b.workflows)+1)
	for _, existing := range b.workflows {
		if existing.WorkflowID != w.WorkflowID {
			kept = append(kept, existing)
		}
	}
	b.workflows = lastN(append(kept, w), b.workflowWindow)
}

// stream returns the state for endpoint, creating it. Must be called with lock held.
func (b *board) stream(endpoint string) *StreamState {
	s, ok := b.streams[endpoint]
	if !ok {
		s = &StreamState{Endpoint: endpoint, Name: path.Base(endpoint)}
		b.streams[endpoint] = s
	}
	return s
}

func (b *board) register(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stream(endpoint)
}

func (b *board) setConnected(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stream(endpoint)
	s.Connected = true
	s.Error = ""
}

func (b *board) setDisconnected(endpoint, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stream(endpoint)
	s.Connected = false
	if text != "" {
		s.Error = text
	}
}

// setStopped marks a stream torn down on purpose. There is nothing to report,
// so the error text is cleared.
func (b *board) setStopped(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stream(endpoint)
	s.Connected = false
	s.Error = ""
}

func (b *board) stopAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.streams {
		s.Connected = false
		s.Error = ""
	}
}

func (b *board) markMessage(endpoint string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stream(endpoint)
	s.Messages++
	s.LastMessageAt = at
}

// snapshot copies the board so callers never share slices with it.
func (b *board) snapshot() Board {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := Board{
		Analytics: append([]model.Analytics(nil), b.analytics...),
		Workflows: make([]model.Workflow, 0, len(b.workflows)),
		Streams:   make([]StreamState, 0, len(b.streams)),
	}
	if out.Analytics == nil {
		out.Analytics = []model.Analytics{}
	}
	if b.document != nil {
		d := *b.document
		out.Document = &d
	}
	for _, w := range b.workflows {
		w.Steps = append([]model.WorkflowStep(nil), w.Steps...)
		out.Workflows = append(out.Workflows, w)
	}
	for _, s := range b.streams {
		out.Streams = append(out.Streams, *s)
	}
	sort.Slice(out.Streams, func(i, j int) bool {
		return out.Streams[i].Endpoint < out.Streams[j].Endpoint
	})
	return out
}

// lastN returns the last n items of s, reusing its backing array.
func lastN[T any](s []T, n int) []T {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
