package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ConvID is the opaque server-issued conversation id. The backend may encode
// it as a JSON string or a number. Numeric records which one it used so the
// id goes back in the same JSON type.
type ConvID struct {
	ID      string
	Numeric bool
}

// UnmarshalJSON accepts a string, a number or null
func (c *ConvID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ConvID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode conv_id: %w", err)
		}
		*c = ConvID{ID: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode conv_id: %w", err)
	}
	*c = ConvID{ID: n.String(), Numeric: true}
	return nil
}

// MarshalJSON writes a number only for ids that arrived as canonical
// integers; everything else is a JSON string
func (c ConvID) MarshalJSON() ([]byte, error) {
	if c.Numeric {
		if n, err := strconv.ParseInt(c.ID, 10, 64); err == nil && strconv.FormatInt(n, 10) == c.ID {
			return []byte(c.ID), nil
		}
	}
	return json.Marshal(c.ID)
}

func (c ConvID) String() string {
	return c.ID
}

// ChatQueryRequest is the body of POST /api/v1/chat/query
type ChatQueryRequest struct {
	UserID int    `json:"user_id"`
	Text   string `json:"text"`
	ConvID *ConvID `json:"conv_id,omitempty"`
}

// ChatQueryResponse is the reply of POST /api/v1/chat/query
type ChatQueryResponse struct {
	Answer string `json:"answer"`
	ConvID ConvID `json:"conv_id"`
}

// LegacyChatRequest is the body of POST /api/v1/chat
type LegacyChatRequest struct {
	Message string `json:"message"`
}

// LegacyChatResponse is the reply of POST /api/v1/chat
type LegacyChatResponse struct {
	Response string `json:"response"`
}

// TranscriptionResponse is the reply of POST /api/v1/voice
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// OCRResponse is the reply of POST /api/v1/ocr
type OCRResponse struct {
	Text string `json:"text"`
}

// ErrorResponse is the error body returned by the backend
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ChatReply is what a chat backend returns for one turn, whatever the variant
type ChatReply struct {
	Answer string
	ConvID string
}
