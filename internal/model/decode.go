package model

import (
	"encoding/json"
	"fmt"
)

// DecodeEnvelope parses a raw frame into an Envelope. The payload is left
// undecoded; use the typed accessors.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// Document decodes the payload of a document envelope.
func (e Envelope) Document() (Document, error) {
	var d Document
	if err := e.decodePayload(TypeDocument, &d); err != nil {
		return Document{}, err
	}
	if d.CreatedAt == "" {
		d.CreatedAt = d.Timestamp
	}
	return d, nil
}

// Analytics decodes the payload of an analytics envelope.
func (e Envelope) Analytics() (Analytics, error) {
	var a Analytics
	if err := e.decodePayload(TypeAnalytics, &a); err != nil {
		return Analytics{}, err
	}
	return a, nil
}

// Workflow decodes the payload of a workflow envelope.
func (e Envelope) Workflow() (Workflow, error) {
	var w Workflow
	if err := e.decodePayload(TypeWorkflow, &w); err != nil {
		return Workflow{}, err
	}
	return w, nil
}

func (e Envelope) decodePayload(want string, v any) error {
	if e.Type != want {
		return fmt.Errorf("%w: have %q, want %q", ErrWrongType, e.Type, want)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("decode %s payload: empty", want)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", want, err)
	}
	return nil
}
