package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/adapters"
	"github.com/Suraj127-git/medchat/adapters/mock"
	"github.com/Suraj127-git/medchat/domain/repositories"
	"github.com/Suraj127-git/medchat/internal/websocket"
)

const (
	shutdownTimeout = 10 * time.Second

	defaultGraphTTL        = 2 * time.Hour
	defaultCleanupInterval = 10 * time.Minute
)

// ServerConfig configures the dev backend
//
// Fields:
//   - Addr: listen address
//   - JWTSecret: enables bearer auth when non-empty
//   - GraphTTL: idle graphs older than this are expired
//   - CleanupInterval: how often expiry runs
type ServerConfig struct {
	Addr            string
	JWTSecret       string
	GraphTTL        time.Duration
	CleanupInterval time.Duration
}

// Backends are the services behind the dev routes. Nil fields fall back to
// canned answers and in-memory graphs.
type Backends struct {
	Answers repositories.AnswerGenerator
	Speech  repositories.SpeechToText
	OCR     repositories.ImageToText
	Graphs  repositories.GraphRepository
}

// Server is the local development backend
type Server struct {
	echo    *echo.Echo
	hub     *websocket.Hub
	cleanup *GraphCleanupService
	graphs  repositories.GraphRepository
	cfg     ServerConfig
	logger  *zap.Logger
}

// NewServer wires the backends into an echo instance
func NewServer(cfg ServerConfig, backends Backends, logger *zap.Logger) *Server {
	if cfg.GraphTTL <= 0 {
		cfg.GraphTTL = defaultGraphTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("12M"))
	e.Use(requestLogger(logger))

	if backends.Answers == nil {
		backends.Answers = mock.NewChatResponder(logger)
	}
	if backends.Speech == nil {
		backends.Speech = mock.NewSpeechToText(logger)
	}
	if backends.OCR == nil {
		backends.OCR = mock.NewImageToText(logger)
	}
	if backends.Graphs == nil {
		backends.Graphs = adapters.NewMemoryGraphRepository()
	}
	graphs := backends.Graphs
	hub := websocket.NewHub(websocket.HubConfig{}, logger.Named("mic"))

	InitRoutes(e, Dependencies{
		Answers:   backends.Answers,
		Speech:    backends.Speech,
		OCR:       backends.OCR,
		Graphs:    graphs,
		Hub:       hub,
		JWTSecret: []byte(cfg.JWTSecret),
	}, logger)

	return &Server{
		echo:    e,
		hub:     hub,
		cleanup: NewGraphCleanupService(graphs, cfg.GraphTTL, cfg.CleanupInterval, logger),
		graphs:  graphs,
		cfg:     cfg,
		logger:  logger,
	}
}

// Handler exposes the routes for in-process use
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run starts background services, serves on ln until ctx is done and then
// shuts down gracefully
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	s.cleanup.Start()
	defer s.cleanup.Stop()

	s.echo.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("Dev server started", zap.String("addr", ln.Addr().String()),
		zap.Bool("auth", s.cfg.JWTSecret != ""))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Dev server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.logger.Info("Dev server exited")
	return nil
}

// ListenAndRun listens on the configured address and calls Run
func (s *Server) ListenAndRun(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Run(ctx, ln)
}

// requestLogger logs every request through zap
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("Request", fields...)
			return nil
		},
	})
}
