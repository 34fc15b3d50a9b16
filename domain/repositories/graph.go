package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/Suraj127-git/medchat/domain/entities"
)

// ErrGraphNotFound is returned when no graph exists for a conversation id
var ErrGraphNotFound = errors.New("graph not found")

// GraphSource fetches the reasoning graph of a conversation from the backend
type GraphSource interface {
	FetchGraph(ctx context.Context, convID string) (*entities.ReasoningGraph, error)
}

// GraphTurn is one answered question recorded into a reasoning graph
type GraphTurn struct {
	UserID   int
	Question string
	Answer   string
	Sources  []string
}

// GraphRepository stores reasoning graphs on the backend side
type GraphRepository interface {
	RecordTurn(ctx context.Context, convID string, turn GraphTurn) error
	Get(ctx context.Context, convID string) (*entities.ReasoningGraph, error)
	// ExpireIdle drops graphs not touched for longer than maxIdle and
	// returns how many were removed
	ExpireIdle(ctx context.Context, maxIdle time.Duration) (int, error)
}
