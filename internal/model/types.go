package model

import (
	"encoding/json"
	"errors"
)

// Envelope types.
const (
	TypeDocument  = "document"
	TypeAnalytics = "analytics"
	TypeWorkflow  = "workflow"
)

var (
	// ErrMissingType indicates an envelope without a type field.
	ErrMissingType = errors.New("envelope has no type")

	// ErrWrongType indicates a payload accessor was called for another envelope type.
	ErrWrongType = errors.New("envelope type mismatch")
)

// Envelope is the outer frame of every feed message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Document is a document created or updated in the office system.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Type      string `json:"type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"` // Older servers send this instead of created_at
}

// Analytics is one point of the analytics time series.
type Analytics struct {
	Timestamp      string  `json:"timestamp"`
	DocumentCount  int     `json:"document_count"`
	UploadCount    int     `json:"upload_count"`
	UserActions    int     `json:"user_actions"`
	ActiveUsers    int     `json:"active_users,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
	SystemLoad     float64 `json:"system_load,omitempty"`
}

// WorkflowStep is one stage of a document workflow.
type WorkflowStep struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Completed   bool   `json:"completed,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Workflow is the processing state of a document.
type Workflow struct {
	WorkflowID string         `json:"workflow_id"`
	DocumentID string         `json:"document_id"`
	Status     string         `json:"status"`
	Step       string         `json:"step,omitempty"`
	Progress   float64        `json:"progress,omitempty"`
	StartedAt  string         `json:"started_at"`
	UpdatedAt  string         `json:"updated_at"`
	Timestamp  string         `json:"timestamp,omitempty"`
	Steps      []WorkflowStep `json:"steps"`
}

// Known reports whether t is one of the envelope types the feeds send.
func Known(t string) bool {
	switch t {
	case TypeDocument, TypeAnalytics, TypeWorkflow:
		return true
	}
	return false
}
