package entities

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ExtractionKind selects the remote service that turns a buffer into text
type ExtractionKind string

const (
	ExtractionVoice ExtractionKind = "voice"
	ExtractionImage ExtractionKind = "image"
)

// ExtractionRequest is a one-shot upload of a captured or selected buffer
type ExtractionRequest struct {
	Kind        ExtractionKind `json:"kind"`
	Payload     []byte         `json:"-"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
}

// Empty reports whether there is nothing to upload
func (r ExtractionRequest) Empty() bool {
	return len(r.Payload) == 0
}

// Validate checks the request fields
func (r ExtractionRequest) Validate() error {
	if r.Kind != ExtractionVoice && r.Kind != ExtractionImage {
		return errors.New("extraction kind must be voice or image")
	}
	if r.Filename == "" {
		return errors.New("filename is required")
	}
	return nil
}

// ReasoningGraph is the backend's diagnostic graph for a conversation.
// The client never interprets it.
type ReasoningGraph struct {
	ConvID string          `json:"conv_id"`
	Raw    json.RawMessage `json:"graph"`
}

// Empty reports whether no graph has been loaded
func (g ReasoningGraph) Empty() bool {
	return len(g.Raw) == 0
}

// Pretty returns the graph indented for display, or the raw bytes when they
// are not valid JSON
func (g ReasoningGraph) Pretty() string {
	if g.Empty() {
		return ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, g.Raw, "", "  "); err != nil {
		return string(g.Raw)
	}
	return out.String()
}
