package entities

import (
	"errors"
)

// Sender identifies who produced a message in a thread
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message represents one entry of a conversation thread
type Message struct {
	Sender  Sender `json:"sender"`
	Content string `json:"content"`
}

// Thread is the ordered message history of one conversation.
// Append order is the only ordering key. Thread is not safe for concurrent
// use; its owner serializes access.
type Thread struct {
	messages     []Message
	continuityID string
	pending      bool
}

// NewThread creates an empty thread without a continuity id
func NewThread() *Thread {
	return &Thread{
		messages: make([]Message, 0),
	}
}

// AppendUser appends a user message and returns its index
func (t *Thread) AppendUser(content string) int {
	return t.append(Message{Sender: SenderUser, Content: content})
}

// AppendAssistant appends an assistant message and returns its index
func (t *Thread) AppendAssistant(content string) int {
	return t.append(Message{Sender: SenderAssistant, Content: content})
}

func (t *Thread) append(m Message) int {
	t.messages = append(t.messages, m)
	return len(t.messages) - 1
}

// Messages returns a copy of the messages in append order
func (t *Thread) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages
func (t *Thread) Len() int {
	return len(t.messages)
}

// ContinuityID returns the server-issued conversation id, empty when absent
func (t *Thread) ContinuityID() string {
	return t.continuityID
}

// SetContinuityID records the id returned by the server exactly as given.
// An empty id never clears one that is already known.
func (t *Thread) SetContinuityID(id string) bool {
	if id == "" || id == t.continuityID {
		return false
	}
	t.continuityID = id
	return true
}

// Pending reports whether a send is in flight
func (t *Thread) Pending() bool {
	return t.pending
}

// SetPending updates the in-flight flag and reports whether it changed
func (t *Thread) SetPending(pending bool) bool {
	if t.pending == pending {
		return false
	}
	t.pending = pending
	return true
}

// Reset starts a new conversation: messages and continuity id are dropped
func (t *Thread) Reset() {
	t.messages = make([]Message, 0)
	t.continuityID = ""
	t.pending = false
}

// Validate checks the structural invariants of the thread
func (t *Thread) Validate() error {
	for _, m := range t.messages {
		if m.Sender != SenderUser && m.Sender != SenderAssistant {
			return errors.New("invalid message sender")
		}
	}
	return nil
}
