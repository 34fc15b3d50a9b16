package domain

import "errors"

var (
	// ErrNetwork marks a failed request to the backend: transport error,
	// timeout, non-2xx status or undecodable body
	ErrNetwork = errors.New("network failure")

	// ErrExtraction marks a failed voice or image extraction
	ErrExtraction = errors.New("extraction failed")

	// ErrPermissionDenied marks a capture device that could not be acquired
	ErrPermissionDenied = errors.New("capture device access denied")

	// ErrNoContinuityID is returned when an operation needs a conversation id
	// and none has been issued yet
	ErrNoContinuityID = errors.New("no conversation id")

	// ErrBusy is returned when an operation needs an idle conversation
	ErrBusy = errors.New("conversation busy")

	// ErrConversationStarted is returned when an existing conversation can
	// only be resumed into an empty thread
	ErrConversationStarted = errors.New("conversation already started")
)

// Failure messages shown to the user
const (
	ChatFailureMessage       = "Error: unable to fetch response"
	EmptyReplyMessage        = "No reply"
	VoiceFailureMessage      = "Voice processing failed."
	ImageFailureMessage      = "OCR failed to process image"
	PermissionDeniedMessage  = "Microphone access denied or unavailable."
	NoContinuityIDMessage    = "No conversation id available. Send a message first."
	GraphFetchFailureMessage = "Graph fetch failed"
)
