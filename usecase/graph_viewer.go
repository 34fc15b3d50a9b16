package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

// ContinuitySource reports the current conversation id
type ContinuitySource interface {
	ContinuityID() string
}

var _ ContinuitySource = (*ConversationService)(nil)

// GraphViewerConfig tunes the graph viewer
type GraphViewerConfig struct {
	Timeout time.Duration
}

// GraphViewer fetches and holds the reasoning graph of the current
// conversation
type GraphViewer struct {
	source     repositories.GraphSource
	continuity ContinuitySource
	notifier   repositories.Notifier
	cfg        GraphViewerConfig
	logger     *zap.Logger

	mu      sync.RWMutex
	graph   *entities.ReasoningGraph
	convID  string
	visible bool
}

// NewGraphViewer creates a hidden graph viewer
func NewGraphViewer(
	source repositories.GraphSource,
	continuity ContinuitySource,
	notifier repositories.Notifier,
	cfg GraphViewerConfig,
	logger *zap.Logger,
) *GraphViewer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	return &GraphViewer{
		source:     source,
		continuity: continuity,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// Fetch loads the graph of the current conversation and shows it. Without a
// conversation id nothing is requested and domain.ErrNoContinuityID is
// returned. On failure the viewer keeps its visibility.
func (v *GraphViewer) Fetch(ctx context.Context) error {
	convID := v.continuity.ContinuityID()
	if convID == "" {
		v.notifier.Notify(entities.NoticePreconditionUnmet, entities.ChannelGraph, domain.NoContinuityIDMessage)
		return domain.ErrNoContinuityID
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	graph, err := v.source.FetchGraph(ctx, convID)
	if err != nil {
		v.logger.Error("Graph fetch failed", zap.String("convID", convID), zap.Error(err))
		v.notifier.Notify(entities.NoticeNetworkFailure, entities.ChannelGraph, domain.GraphFetchFailureMessage)
		return fmt.Errorf("fetch graph %s: %w", convID, err)
	}

	v.mu.Lock()
	v.graph = graph
	v.convID = convID
	v.visible = true
	v.mu.Unlock()

	v.logger.Info("Graph loaded", zap.String("convID", convID), zap.Int("bytes", len(graph.Raw)))
	return nil
}

// Close hides the graph. The last fetched graph is kept.
func (v *GraphViewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = false
}

// Visible reports whether the graph is shown
func (v *GraphViewer) Visible() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.visible
}

// Graph returns the last fetched graph, nil before the first success
func (v *GraphViewer) Graph() *entities.ReasoningGraph {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.graph
}

// ConvID returns the conversation id the current graph was fetched for
func (v *GraphViewer) ConvID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.convID
}
