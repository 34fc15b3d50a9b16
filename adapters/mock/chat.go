package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

type cannedAnswer struct {
	keywords []string
	answer   string
	sources  []string
}

var cannedAnswers = []cannedAnswer{
	{
		keywords: []string{"diabetes", "glucose", "insulin"},
		answer:   "Type 2 diabetes is usually managed with lifestyle changes first, then metformin. Insulin is added when glucose targets are not met. Please confirm any treatment change with your physician.",
		sources:  []string{"ADA Standards of Care", "WHO diabetes fact sheet"},
	},
	{
		keywords: []string{"fever", "temperature"},
		answer:   "A fever above 38 C in adults is commonly treated with rest, fluids and paracetamol. Seek care if it lasts more than three days or exceeds 39.5 C.",
		sources:  []string{"NHS fever guidance"},
	},
	{
		keywords: []string{"headache", "migraine"},
		answer:   "Most tension headaches respond to simple analgesics and hydration. A sudden severe headache needs urgent evaluation.",
		sources:  []string{"NICE headache guideline"},
	},
	{
		keywords: []string{"blood pressure", "hypertension"},
		answer:   "Blood pressure above 140/90 mmHg on repeated readings is classified as hypertension. Reducing salt intake and regular exercise help; medication depends on overall risk.",
		sources:  []string{"ESC hypertension guideline"},
	},
}

// ChatResponder produces canned medical answers for the dev backend
type ChatResponder struct {
	logger *zap.Logger
}

var _ repositories.AnswerGenerator = (*ChatResponder)(nil)

// NewChatResponder creates a new canned chat responder
func NewChatResponder(logger *zap.Logger) *ChatResponder {
	return &ChatResponder{logger: logger}
}

// Respond returns an answer and the sources it cites
func (r *ChatResponder) Respond(question string) (string, []string) {
	q := strings.ToLower(question)
	for _, c := range cannedAnswers {
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				r.logger.Debug("Canned answer matched", zap.String("keyword", kw))
				return c.answer, c.sources
			}
		}
	}
	return fmt.Sprintf("I could not find guidance for %q. Could you describe the symptoms in more detail?", strings.TrimSpace(question)), nil
}

// Answer implements repositories.AnswerGenerator
func (r *ChatResponder) Answer(ctx context.Context, question string) (repositories.GeneratedAnswer, error) {
	if err := ctx.Err(); err != nil {
		return repositories.GeneratedAnswer{}, err
	}
	text, sources := r.Respond(question)
	return repositories.GeneratedAnswer{Text: text, Sources: sources}, nil
}

// ChatBackend is an in-process ChatBackend backed by ChatResponder. It issues
// a conversation id on the first turn and echoes it afterwards.
type ChatBackend struct {
	responder *ChatResponder
	logger    *zap.Logger

	mu    sync.Mutex
	calls []ChatCall
}

// ChatCall records one Ask invocation
type ChatCall struct {
	UserID int
	Text   string
	ConvID string
}

var _ repositories.ChatBackend = (*ChatBackend)(nil)

// NewChatBackend creates a new in-process chat backend
func NewChatBackend(logger *zap.Logger) *ChatBackend {
	return &ChatBackend{
		responder: NewChatResponder(logger),
		logger:    logger,
	}
}

// Ask implements repositories.ChatBackend
func (b *ChatBackend) Ask(ctx context.Context, userID int, text, convID string) (domain.ChatReply, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChatReply{}, err
	}

	b.mu.Lock()
	b.calls = append(b.calls, ChatCall{UserID: userID, Text: text, ConvID: convID})
	b.mu.Unlock()

	if convID == "" {
		convID = uuid.NewString()
	}
	answer, _ := b.responder.Respond(text)
	return domain.ChatReply{Answer: answer, ConvID: convID}, nil
}

// Calls returns the recorded invocations
func (b *ChatBackend) Calls() []ChatCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ChatCall(nil), b.calls...)
}
