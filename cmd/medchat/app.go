package main

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/adapters/capture"
	"github.com/Suraj127-git/medchat/adapters/medapi"
	"github.com/Suraj127-git/medchat/domain/repositories"
	"github.com/Suraj127-git/medchat/internal/auth"
	"github.com/Suraj127-git/medchat/internal/config"
	"github.com/Suraj127-git/medchat/internal/notify"
	"github.com/Suraj127-git/medchat/internal/tui"
	"github.com/Suraj127-git/medchat/usecase"
)

// app holds the client-side services of one process
type app struct {
	client   *medapi.Client
	notices  *notify.Center
	conv     *usecase.ConversationService
	gateway  *usecase.ExtractionGateway
	capture  *usecase.CaptureController
	graph    *usecase.GraphViewer
	recorder *turnRecorder
	logger   *zap.Logger
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	client, err := medapi.NewClient(medapi.Config{
		BaseURL: cfg.APIBaseURL,
		Variant: medapi.Variant(cfg.APIVariant),
		Token:   cfg.APIToken,
		Timeout: cfg.RequestTimeout,
	}, logger.Named("api"))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	device, err := newCaptureDevice(cfg, logger.Named("capture"))
	if err != nil {
		return nil, err
	}

	userID := cfg.ResolveUserID(auth.UserIDFromToken)
	logger.Info("Client configured",
		zap.String("baseURL", cfg.APIBaseURL),
		zap.String("variant", cfg.APIVariant),
		zap.Int("userID", userID),
		zap.String("captureBackend", cfg.Capture.Backend))

	notices := notify.NewCenter(notify.Config{TTL: cfg.Notices.TTL, Max: cfg.Notices.Max}, logger.Named("notify"))
	chat := usecase.NewChatService(client, userID, cfg.RequestTimeout, logger.Named("chat"))
	conv := usecase.NewConversationService(chat, usecase.ConversationConfig{RequestTimeout: cfg.RequestTimeout}, logger.Named("conversation"))
	recorder := &turnRecorder{sink: conv}
	gateway := usecase.NewExtractionGateway(client, client, recorder, notices,
		usecase.GatewayConfig{Timeout: cfg.RequestTimeout}, logger.Named("extraction"))
	ctrl := usecase.NewCaptureController(device, gateway, notices, usecase.CaptureConfig{
		Filename:    cfg.Capture.Filename,
		ContentType: cfg.Capture.ContentType,
	}, logger.Named("capture"))
	graph := usecase.NewGraphViewer(client, conv, notices,
		usecase.GraphViewerConfig{Timeout: cfg.RequestTimeout}, logger.Named("graph"))

	return &app{
		client:   client,
		notices:  notices,
		conv:     conv,
		gateway:  gateway,
		capture:  ctrl,
		graph:    graph,
		recorder: recorder,
		logger:   logger,
	}, nil
}

func (a *app) services() tui.Services {
	return tui.Services{
		Conversation: a.conv,
		Capture:      a.capture,
		Gateway:      a.gateway,
		Graph:        a.graph,
		Notices:      a.notices,
	}
}

// Close stops the capture device first so no recording is submitted into a
// closed conversation
func (a *app) Close() {
	a.capture.Close()
	a.conv.Close()
}

func newCaptureDevice(cfg *config.Config, logger *zap.Logger) (repositories.AudioCapture, error) {
	c := cfg.Capture
	switch c.Backend {
	case config.CaptureCommand:
		return capture.NewCommandCapture(capture.CommandConfig{Command: c.Command, ChunkSize: c.ChunkSize}, logger)
	case config.CaptureWebSocket:
		return capture.NewWebSocketCapture(capture.WebSocketConfig{URL: c.DeviceURL, Token: cfg.APIToken}, logger)
	case config.CaptureFile:
		return capture.NewFileCapture(c.File, c.ChunkSize, logger)
	default:
		return capture.Unavailable{}, nil
	}
}

// turnRecorder forwards extracted text to the conversation and keeps the
// turn so headless commands can wait for the reply
type turnRecorder struct {
	sink usecase.TextSink

	mu   sync.Mutex
	last *usecase.Turn
}

var _ usecase.TextSink = (*turnRecorder)(nil)

func (r *turnRecorder) SendText(text string) *usecase.Turn {
	turn := r.sink.SendText(text)
	if turn != nil {
		r.mu.Lock()
		r.last = turn
		r.mu.Unlock()
	}
	return turn
}

// Last returns the most recent accepted turn
func (r *turnRecorder) Last() *usecase.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
