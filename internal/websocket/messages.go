package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of a microphone control frame
type MessageType string

// Supported message types
const (
	// client → device
	MessageTypeCaptureStart MessageType = "capture_start"
	MessageTypeCaptureEnd   MessageType = "capture_end"
	MessageTypePing         MessageType = "ping"

	// device → client
	MessageTypeCaptureStarted MessageType = "capture_started"
	MessageTypeCaptureStopped MessageType = "capture_stopped"
	MessageTypeError          MessageType = "error"
	MessageTypePong           MessageType = "pong"
)

// Sample rate bounds and defaults
const (
	MinSampleRate     = 8000
	MaxSampleRate     = 48000
	DefaultSampleRate = 16000
	DefaultEncoding   = "pcm"
)

var validEncodings = map[string]bool{
	"pcm": true, "wav": true, "webm": true, "opus": true,
}

// Error codes sent in error frames
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeNoSession      = "no_session"
	ErrorCodeBusy           = "busy"
)

// BaseMessage defines the common structure for all control frames
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	SessionID string      `json:"session_id,omitempty"`
}

// CaptureStartMessage asks the device to start streaming audio
type CaptureStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
}

// CaptureEndMessage asks the device to stop streaming
type CaptureEndMessage struct {
	BaseMessage
}

// CaptureStartedMessage confirms a capture and carries its session id
type CaptureStartedMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
}

// CaptureStoppedMessage marks the end of the audio of a session
type CaptureStoppedMessage struct {
	BaseMessage
	TotalChunks int `json:"total_chunks"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func (e *ErrorMessage) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MessageValidator validates control frames in both directions
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses a control frame and returns a pointer to its typed
// message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeCaptureStart:
		var msg CaptureStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capture start message: %w", err)
		}
		if err := validateAudioFormat(msg.SampleRate, msg.Encoding); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeCaptureEnd:
		var msg CaptureEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capture end message: %w", err)
		}
		if msg.SessionID == "" {
			return nil, fmt.Errorf("session_id is required")
		}
		return &msg, nil

	case MessageTypeCaptureStarted:
		var msg CaptureStartedMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capture started message: %w", err)
		}
		if msg.SessionID == "" {
			return nil, fmt.Errorf("session_id is required")
		}
		if err := validateAudioFormat(msg.SampleRate, msg.Encoding); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeCaptureStopped:
		var msg CaptureStoppedMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capture stopped message: %w", err)
		}
		if msg.SessionID == "" {
			return nil, fmt.Errorf("session_id is required")
		}
		if msg.TotalChunks < 0 {
			return nil, fmt.Errorf("total_chunks must not be negative")
		}
		return &msg, nil

	case MessageTypeError:
		var msg ErrorMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid error message: %w", err)
		}
		if msg.Code == "" {
			return nil, fmt.Errorf("error_code is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypePong:
		var msg PongMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid pong message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateAudioFormat checks the optional format fields
func validateAudioFormat(sampleRate int, encoding string) error {
	if sampleRate != 0 && (sampleRate < MinSampleRate || sampleRate > MaxSampleRate) {
		return fmt.Errorf("sample_rate must be between %d and %d", MinSampleRate, MaxSampleRate)
	}
	if encoding != "" && !validEncodings[encoding] {
		return fmt.Errorf("encoding must be one of: pcm, wav, webm, opus")
	}
	return nil
}

func newBase(t MessageType, sessionID string) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
		SessionID: sessionID,
	}
}

// CreateCaptureStartMessage creates a capture request
func CreateCaptureStartMessage(sampleRate int, encoding string) *CaptureStartMessage {
	return &CaptureStartMessage{
		BaseMessage: newBase(MessageTypeCaptureStart, ""),
		SampleRate:  sampleRate,
		Encoding:    encoding,
	}
}

// CreateCaptureEndMessage creates a stop request for a session
func CreateCaptureEndMessage(sessionID string) *CaptureEndMessage {
	return &CaptureEndMessage{BaseMessage: newBase(MessageTypeCaptureEnd, sessionID)}
}

// CreateCaptureStartedMessage creates a capture confirmation
func CreateCaptureStartedMessage(sessionID string, sampleRate int, encoding string) *CaptureStartedMessage {
	return &CaptureStartedMessage{
		BaseMessage: newBase(MessageTypeCaptureStarted, sessionID),
		SampleRate:  sampleRate,
		Encoding:    encoding,
	}
}

// CreateCaptureStoppedMessage creates the end-of-audio marker
func CreateCaptureStoppedMessage(sessionID string, totalChunks int) *CaptureStoppedMessage {
	return &CaptureStoppedMessage{
		BaseMessage: newBase(MessageTypeCaptureStopped, sessionID),
		TotalChunks: totalChunks,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError, ""),
		Code:        code,
		Message:     message,
	}
}

// CreatePingMessage creates a ping request
func CreatePingMessage(data string) *PingMessage {
	return &PingMessage{BaseMessage: newBase(MessageTypePing, ""), Data: data}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: newBase(MessageTypePong, ""), Data: data}
}
