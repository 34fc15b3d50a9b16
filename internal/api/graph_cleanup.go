package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain/repositories"
)

// GraphCleanupService expires idle reasoning graphs in the background
type GraphCleanupService struct {
	graphs   repositories.GraphRepository
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewGraphCleanupService creates a new graph cleanup service
func NewGraphCleanupService(graphs repositories.GraphRepository, ttl, interval time.Duration, logger *zap.Logger) *GraphCleanupService {
	return &GraphCleanupService{
		graphs:   graphs,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *GraphCleanupService) Start() {
	s.wg.Add(1)
	go s.cleanupLoop()
	s.logger.Info("Graph cleanup service started",
		zap.Duration("ttl", s.ttl),
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *GraphCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.logger.Info("Graph cleanup service stopped")
	})
}

// cleanupLoop runs the cleanup process periodically
func (s *GraphCleanupService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunCleanup()
		}
	}
}

// RunCleanup performs one expiry pass
func (s *GraphCleanupService) RunCleanup() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.graphs.ExpireIdle(ctx, s.ttl)
	if err != nil {
		s.logger.Error("Failed to expire graphs", zap.Error(err))
		return removed
	}

	if removed > 0 {
		s.logger.Info("Expired idle graphs", zap.Int("removed", removed))
	}
	return removed
}
