package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

// DefaultRequestTimeout bounds every backend call that has no deadline
const DefaultRequestTimeout = 30 * time.Second

// ChatService sends single chat turns to the backend on behalf of one user
type ChatService struct {
	backend repositories.ChatBackend
	userID  int
	timeout time.Duration
	logger  *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(backend repositories.ChatBackend, userID int, timeout time.Duration, logger *zap.Logger) *ChatService {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &ChatService{
		backend: backend,
		userID:  userID,
		timeout: timeout,
		logger:  logger,
	}
}

// Ask sends text to the backend. convID is the continuity id known at call
// time, empty when none was issued yet. Every failure wraps domain.ErrNetwork.
func (s *ChatService) Ask(ctx context.Context, text, convID string) (domain.ChatReply, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.backend.Ask(ctx, s.userID, text, convID)
	if err != nil {
		s.logger.Error("Chat request failed",
			zap.Int("userID", s.userID),
			zap.String("convID", convID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		if errors.Is(err, domain.ErrNetwork) {
			return domain.ChatReply{}, err
		}
		return domain.ChatReply{}, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	s.logger.Info("Chat reply received",
		zap.Int("userID", s.userID),
		zap.String("convID", reply.ConvID),
		zap.Int("answerLength", len(reply.Answer)),
		zap.Duration("elapsed", time.Since(start)))

	return reply, nil
}
