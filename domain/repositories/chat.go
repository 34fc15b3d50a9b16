package repositories

import (
	"context"

	"github.com/Suraj127-git/medchat/domain"
)

// ChatBackend abstracts the medical QA chat endpoint
type ChatBackend interface {
	// Ask sends one user turn. convID is empty when no conversation id has
	// been issued yet. The reply's ConvID is empty when the backend
	// returned none.
	Ask(ctx context.Context, userID int, text, convID string) (domain.ChatReply, error)
}
