package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/rickgao/officefeed/internal/connection"
)

func frame(endpoint, msgType string, payload any) connection.Message {
	data, _ := json.Marshal(map[string]any{"type": msgType, "payload": payload})
	return connection.Message{
		Endpoint:     endpoint,
		ConnectionID: "conn-1",
		Raw:          data,
		ReceivedAt:   time.Now(),
	}
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()

	if cfg.AnalyticsWindow != 20 {
		t.Errorf("AnalyticsWindow = %d, want 20", cfg.AnalyticsWindow)
	}
	if cfg.WorkflowWindow != 5 {
		t.Errorf("WorkflowWindow = %d, want 5", cfg.WorkflowWindow)
	}
	if cfg.Archive {
		t.Error("Archive should be off by default")
	}
}

func TestRouter_Document(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), slog.Default())

	r.Handle(frame("/ws/documents", "document", map[string]any{
		"id": "d1", "title": "Q3 report", "status": "processing", "created_at": "2024-01-15T12:30:45Z",
	}))
	r.Handle(frame("/ws/documents", "document", map[string]any{
		"id": "d2", "title": "Q3 Report", "status": "completed", "created_at": "2024-01-15T12:31:00Z",
	}))

	b := r.Board()
	if b.Document == nil {
		t.Fatal("expected latest document")
	}
	if b.Document.ID != "d2" || b.Document.Title != "Q3 Report" {
		t.Errorf("Document = %+v, want d2", b.Document)
	}
}

func TestRouter_AnalyticsWindow(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), slog.Default())

	for i := 0; i < 25; i++ {
		r.Handle(frame("/ws/analytics", "analytics", map[string]any{
			"timestamp":      fmt.Sprintf("2024-01-15T12:00:%02dZ", i),
			"document_count": i,
			"upload_count":   0,
			"user_actions":   i,
		}))
	}

	b := r.Board()
	if len(b.Analytics) != 20 {
		t.Fatalf("Analytics len = %d, want 20", len(b.Analytics))
	}
	if b.Analytics[0].DocumentCount != 5 {
		t.Errorf("oldest DocumentCount = %d, want 5", b.Analytics[0].DocumentCount)
	}
	if b.Analytics[19].DocumentCount != 24 {
		t.Errorf("newest DocumentCount = %d, want 24", b.Analytics[19].DocumentCount)
	}
}

func TestRouter_AnalyticsFrame(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), slog.Default())

	r.Handle(connection.Message{
		Endpoint:   "/ws/analytics",
		Raw:        []byte(`{"type":"analytics","payload":{"document_count":3,"upload_count":0,"user_actions":3}}`),
		ReceivedAt: time.Now(),
	})

	b := r.Board()
	if len(b.Analytics) != 1 || b.Analytics[0].DocumentCount != 3 {
		t.Errorf("Analytics = %+v, want one point with document_count 3", b.Analytics)
	}
}

func TestRouter_WorkflowDedup(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), slog.Default())

	wf := func(id, status string) connection.Message {
		return frame("/ws/workflows", "workflow", map[string]any{
			"workflow_id": id,
			"document_id": "doc-" + id,
			"status":      status,
			"started_at":  "2024-01-15T12:00:00Z",
			"updated_at":  "2024-01-15T12:00:00Z",
			"steps":       []map[string]any{{"name": "ocr", "status": status}},
		})
	}

	for i := 1; i <= 6; i++ {
		r.Handle(wf(fmt.Sprintf("wf-%d", i), "running"))
	}
	// Update for a workflow already on the board moves it to the end
	r.Handle(wf("wf-3", "completed"))

	b := r.Board()
	if len(b.Workflows) != 5 {
		t.Fatalf("Workflows len = %d, want 5", len(b.Workflows))
	}

	want := []string{"wf-2", "wf-4", "wf-5", "wf-6", "wf-3"}
	for i, w := range b.Workflows {
		if w.WorkflowID != want[i] {
			t.Errorf("Workflows[%d] = %s, want %s", i, w.WorkflowID, want[i])
		}
	}
	if b.Workflows[4].Status != "completed" {
		t.Errorf("updated workflow status = %s, want completed", b.Workflows[4].Status)
	}
}

func TestRouter_Stats(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), slog.Default())

	r.Handle(frame("/ws/documents", "document", map[string]any{"id": "d1"}))
	r.Handle(frame("/ws/documents", "heartbeat", nil))
	r.Handle(connection.Message{Endpoint: "/ws/documents", Raw: []byte(`{"payload":{}}`)})
	r.Handle(frame("/ws/analytics", "analytics", "not an object"))

	stats := r.Stats()
	if stats.MessagesReceived != 4 {
		t.Errorf("MessagesReceived = %d, want 4", stats.MessagesReceived)
	}
	if stats.MessagesRouted != 1 {
		t.Errorf("MessagesRouted = %d, want 1", stats.MessagesRouted)
	}
	if stats.UnknownMessages != 1 {
		t.Errorf("UnknownMessages = %d, want 1", stats.UnknownMessages)
	}
	if stats.ParseErrors != 2 {
		t.Errorf("ParseErrors = %d, want 2", stats.ParseErrors)
	}
}

func TestRouter_StreamState(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), slog.Default())

	opts := r.Options("/ws/documents")
	r.Options("/ws/analytics")

	if opts.Endpoint != "/ws/documents" || opts.OnMessage == nil {
		t.Fatalf("Options = %+v", opts)
	}

	b := r.Board()
	if len(b.Streams) != 2 {
		t.Fatalf("Streams len = %d, want 2", len(b.Streams))
	}
	if b.Streams[0].Name != "analytics" || b.Streams[1].Name != "documents" {
		t.Errorf("stream names = %s, %s", b.Streams[0].Name, b.Streams[1].Name)
	}
	if b.Streams[1].Connected {
		t.Error("stream connected before OnConnect")
	}

	opts.OnConnect()
	if s := r.Board().Streams[1]; !s.Connected || s.Error != "" {
		t.Errorf("after connect = %+v", s)
	}

	opts.OnError(errors.New("connection reset"))
	if s := r.Board().Streams[1]; s.Connected || s.Error != ConnectionLostText {
		t.Errorf("after error = %+v", s)
	}

	opts.OnConnect()
	if s := r.Board().Streams[1]; !s.Connected || s.Error != "" {
		t.Errorf("after reconnect = %+v", s)
	}

	opts.OnClose(&connection.CloseError{Code: connection.CloseNormal})
	if s := r.Board().Streams[1]; s.Connected {
		t.Errorf("after close = %+v", s)
	}

	opts.OnGiveUp(5)
	if s := r.Board().Streams[1]; s.Error != GaveUpText {
		t.Errorf("after give up = %+v", s)
	}

	opts.OnMessage(frame("/ws/documents", "document", map[string]any{"id": "d1"}))
	if s := r.Board().Streams[1]; s.Messages != 1 || s.LastMessageAt.IsZero() {
		t.Errorf("message accounting = %+v", s)
	}
}

func TestRouter_TeardownMarksStopped(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), slog.Default())

	docs := r.Options("/ws/documents")
	analytics := r.Options("/ws/analytics")
	docs.OnConnect()
	analytics.OnConnect()

	stopped := 0
	stop := r.Bind("/ws/documents", func() { stopped++ })
	stop()

	if stopped != 1 {
		t.Errorf("underlying DisconnectFunc called %d times, want 1", stopped)
	}
	b := r.Board()
	if s := b.Streams[1]; s.Connected || s.Error != "" {
		t.Errorf("documents after teardown = %+v", s)
	}
	if s := b.Streams[0]; !s.Connected {
		t.Errorf("analytics = %+v, want still connected", s)
	}

	r.Close()
	for _, s := range r.Board().Streams {
		if s.Connected {
			t.Errorf("%s connected after Close", s.Endpoint)
		}
	}
}

func TestRouter_ArchiveEvents(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.Archive = true
	r := NewRouter(cfg, slog.Default())
	defer r.Close()

	r.Handle(frame("/ws/documents", "document", map[string]any{"id": "d1"}))
	r.Handle(frame("/ws/documents", "heartbeat", nil))
	r.Handle(frame("/ws/workflows", "workflow", map[string]any{"workflow_id": "wf-1"}))

	events := r.Events().DrainTo(0)
	if len(events) != 2 {
		t.Fatalf("queued events = %d, want 2", len(events))
	}
	if events[0].Type != "document" || events[0].Endpoint != "/ws/documents" || events[0].ConnectionID != "conn-1" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Type != "workflow" {
		t.Errorf("events[1].Type = %s, want workflow", events[1].Type)
	}
	if string(events[0].Payload) != `{"id":"d1"}` {
		t.Errorf("events[0].Payload = %s", events[0].Payload)
	}
	if got := r.Stats().ArchiveQueue.TotalReceived; got != 2 {
		t.Errorf("ArchiveQueue.TotalReceived = %d, want 2", got)
	}
}

func TestRouter_ArchiveDisabled(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), nil)
	r.Handle(frame("/ws/documents", "document", map[string]any{"id": "d1"}))

	if r.Events() != nil {
		t.Error("Events() should be nil when archiving is off")
	}
	r.Close()
}

func TestRouter_BoardIsCopy(t *testing.T) {
	r := NewRouter(DefaultRouterConfig(), slog.Default())
	r.Handle(frame("/ws/workflows", "workflow", map[string]any{
		"workflow_id": "wf-1",
		"steps":       []map[string]any{{"name": "ocr", "status": "running"}},
	}))

	b := r.Board()
	b.Workflows[0].Steps[0].Status = "tampered"

	if got := r.Board().Workflows[0].Steps[0].Status; got != "running" {
		t.Errorf("board mutated through snapshot: %s", got)
	}
}
