package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/adapters/llm"
	"github.com/Suraj127-git/medchat/adapters/mongo"
	"github.com/Suraj127-git/medchat/adapters/stt"
	"github.com/Suraj127-git/medchat/internal/api"
	"github.com/Suraj127-git/medchat/internal/config"
)

const backendCloseTimeout = 5 * time.Second

// newDevBackends builds the services configured for the dev server. Unset
// backends are left nil so the server falls back to canned ones. The
// returned func releases the connections.
func newDevBackends(ctx context.Context, cfg config.DevServerConfig, logger *zap.Logger) (api.Backends, func(), error) {
	var (
		backends api.Backends
		closers  []func()
	)
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Answers == config.BackendGemini {
		answerer, err := llm.NewGeminiAnswerer(ctx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger.Named("gemini"))
		if err != nil {
			return api.Backends{}, nil, err
		}
		backends.Answers = answerer
	}

	if cfg.Speech == config.BackendGoogle {
		speech, err := stt.NewGoogleSpeechToText(ctx, stt.GoogleConfig{LanguageCode: cfg.SpeechLanguage}, logger.Named("stt"))
		if err != nil {
			return api.Backends{}, nil, err
		}
		closers = append(closers, func() {
			if err := speech.Close(); err != nil {
				logger.Warn("Failed to close speech client", zap.Error(err))
			}
		})
		backends.Speech = speech
	}

	if cfg.GraphStore == config.StoreMongo {
		client, err := mongo.NewClient(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, logger.Named("mongo"))
		if err != nil {
			release()
			return api.Backends{}, nil, err
		}
		closers = append(closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), backendCloseTimeout)
			defer cancel()
			_ = client.Close(closeCtx)
		})

		graphs := mongo.NewGraphRepository(client.Database, logger.Named("graphs"))
		if err := graphs.EnsureIndexes(ctx); err != nil {
			release()
			return api.Backends{}, nil, fmt.Errorf("failed to prepare graph store: %w", err)
		}
		backends.Graphs = graphs
	}

	logger.Info("Dev server backends ready",
		zap.String("answers", cfg.Answers),
		zap.String("speech", cfg.Speech),
		zap.String("graphStore", cfg.GraphStore))
	return backends, release, nil
}
