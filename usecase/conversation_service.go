package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
)

// ThreadEventType names a change to the conversation thread
type ThreadEventType string

const (
	EventMessageAppended ThreadEventType = "message_appended"
	EventPendingChanged  ThreadEventType = "pending_changed"
	EventReset           ThreadEventType = "reset"
)

// ThreadEvent is emitted after every thread mutation
type ThreadEvent struct {
	Type         ThreadEventType
	Index        int
	Message      entities.Message
	Pending      bool
	ContinuityID string
}

// Snapshot is a copy of the thread state
type Snapshot struct {
	Messages     []entities.Message
	ContinuityID string
	Pending      bool
}

// ConversationConfig tunes the conversation service
type ConversationConfig struct {
	RequestTimeout time.Duration
	EventBuffer    int
}

const defaultEventBuffer = 64

// Turn is the handle of one accepted SendText call
type Turn struct {
	text  string
	done  chan struct{}
	reply string
	err   error
}

// Done is closed once the assistant reply for this turn has been appended
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the turn completes or ctx ends
func (t *Turn) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return t.reply, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Reply returns the appended assistant text. Only valid after Done.
func (t *Turn) Reply() string {
	return t.reply
}

// Err returns the request failure, nil on success. Only valid after Done.
func (t *Turn) Err() error {
	return t.err
}

// ConversationService owns one thread and serializes its chat requests.
//
// SendText appends the user message synchronously and queues the request.
// A single dispatcher drains the queue in FIFO order, so assistant replies
// land in the order the user messages were issued and each request carries
// the continuity id returned by the previous one.
type ConversationService struct {
	chat   *ChatService
	cfg    ConversationConfig
	logger *zap.Logger

	mu          sync.Mutex
	thread      *entities.Thread
	queue       []*Turn
	dispatching bool

	events chan ThreadEvent
	ctx    context.Context
	cancel context.CancelFunc
}

// NewConversationService creates a new conversation service
func NewConversationService(chat *ChatService, cfg ConversationConfig, logger *zap.Logger) *ConversationService {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ConversationService{
		chat:   chat,
		cfg:    cfg,
		logger: logger,
		thread: entities.NewThread(),
		events: make(chan ThreadEvent, cfg.EventBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SendText submits user text. Blank text is ignored and returns nil.
func (s *ConversationService) SendText(text string) *Turn {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	turn := s.appendOptimistic(text)
	start := !s.dispatching
	s.dispatching = true
	s.mu.Unlock()

	if start {
		go s.dispatch()
	}
	return turn
}

// appendOptimistic records the user message, marks the thread pending and
// queues the request. Caller holds s.mu.
func (s *ConversationService) appendOptimistic(text string) *Turn {
	idx := s.thread.AppendUser(text)
	s.emit(ThreadEvent{
		Type:         EventMessageAppended,
		Index:        idx,
		Message:      entities.Message{Sender: entities.SenderUser, Content: text},
		Pending:      true,
		ContinuityID: s.thread.ContinuityID(),
	})
	if s.thread.SetPending(true) {
		s.emit(ThreadEvent{Type: EventPendingChanged, Pending: true, ContinuityID: s.thread.ContinuityID()})
	}

	turn := &Turn{text: text, done: make(chan struct{})}
	s.queue = append(s.queue, turn)
	return turn
}

func (s *ConversationService) dispatch() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.dispatching = false
			if s.thread.SetPending(false) {
				s.emit(ThreadEvent{Type: EventPendingChanged, Pending: false, ContinuityID: s.thread.ContinuityID()})
			}
			s.mu.Unlock()
			return
		}
		turn := s.queue[0]
		s.queue = s.queue[1:]
		convID := s.thread.ContinuityID()
		s.mu.Unlock()

		var (
			reply domain.ChatReply
			err   error
		)
		if cerr := s.ctx.Err(); cerr != nil {
			err = fmt.Errorf("%w: %w", domain.ErrNetwork, cerr)
		} else {
			ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
			reply, err = s.chat.Ask(ctx, turn.text, convID)
			cancel()
		}

		s.mu.Lock()
		s.reconcile(turn, reply, err)
		s.mu.Unlock()
		close(turn.done)
	}
}

// reconcile appends the assistant outcome of a turn. The user message is
// never rolled back. Caller holds s.mu.
func (s *ConversationService) reconcile(turn *Turn, reply domain.ChatReply, err error) {
	content := reply.Answer
	switch {
	case err != nil:
		content = domain.ChatFailureMessage
		turn.err = err
	case strings.TrimSpace(content) == "":
		content = domain.EmptyReplyMessage
	}
	turn.reply = content

	if err == nil && s.thread.SetContinuityID(reply.ConvID) {
		s.logger.Info("Conversation id updated", zap.String("convID", s.thread.ContinuityID()))
	}

	idx := s.thread.AppendAssistant(content)
	s.emit(ThreadEvent{
		Type:         EventMessageAppended,
		Index:        idx,
		Message:      entities.Message{Sender: entities.SenderAssistant, Content: content},
		Pending:      len(s.queue) > 0,
		ContinuityID: s.thread.ContinuityID(),
	})
}

// Snapshot returns a copy of the current thread state
func (s *ConversationService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Messages:     s.thread.Messages(),
		ContinuityID: s.thread.ContinuityID(),
		Pending:      s.thread.Pending(),
	}
}

// ContinuityID returns the server-issued conversation id, empty when absent
func (s *ConversationService) ContinuityID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread.ContinuityID()
}

// Events returns the thread change stream. Events are dropped when the
// reader falls behind; Snapshot always reflects the latest state.
func (s *ConversationService) Events() <-chan ThreadEvent {
	return s.events
}

// Reset starts a new conversation. It fails with domain.ErrBusy while a turn
// is queued or in flight.
func (s *ConversationService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dispatching {
		return domain.ErrBusy
	}
	s.thread.Reset()
	s.logger.Info("Conversation reset")
	s.emit(ThreadEvent{Type: EventReset})
	return nil
}

// Resume continues an existing server conversation. The thread must be idle
// and empty; the id is kept exactly as given.
func (s *ConversationService) Resume(convID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dispatching {
		return domain.ErrBusy
	}
	if s.thread.Len() > 0 {
		return domain.ErrConversationStarted
	}
	s.thread.SetContinuityID(convID)
	s.logger.Info("Conversation resumed", zap.String("convID", convID))
	return nil
}

// Close aborts the in-flight request. Queued turns fail without reaching the
// backend.
func (s *ConversationService) Close() {
	s.cancel()
}

func (s *ConversationService) emit(event ThreadEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Debug("Thread event channel full, dropping event", zap.String("type", string(event.Type)))
	}
}
