package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/repositories"
	mic "github.com/Suraj127-git/medchat/internal/websocket"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultStopTimeout      = 5 * time.Second

	writeWait = 5 * time.Second
)

// WebSocketConfig holds the microphone endpoint configuration
//
// Fields:
//   - URL: ws(s) URL of the microphone endpoint
//   - Token: optional bearer token
//   - SampleRate, Encoding: requested format, empty for the device default
//   - HandshakeTimeout: bound on the dial when the caller sets none
//   - StopTimeout: how long to wait for capture_stopped after Stop
type WebSocketConfig struct {
	URL              string
	Token            string
	SampleRate       int
	Encoding         string
	HandshakeTimeout time.Duration
	StopTimeout      time.Duration
}

// ValidateWebSocketConfig validates the microphone endpoint configuration
func ValidateWebSocketConfig(config WebSocketConfig) error {
	u, err := url.Parse(config.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("device URL must be a ws(s) URL, got %q", config.URL)
	}
	return nil
}

// WebSocketCapture records from a remote microphone speaking the
// capture_start / capture_end protocol
type WebSocketCapture struct {
	config    WebSocketConfig
	validator *mic.MessageValidator
	logger    *zap.Logger
}

var _ repositories.AudioCapture = (*WebSocketCapture)(nil)

// NewWebSocketCapture creates a websocket microphone client
func NewWebSocketCapture(config WebSocketConfig, logger *zap.Logger) (*WebSocketCapture, error) {
	if err := ValidateWebSocketConfig(config); err != nil {
		return nil, fmt.Errorf("invalid microphone config: %w", err)
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = DefaultStopTimeout
	}
	return &WebSocketCapture{
		config:    config,
		validator: mic.NewMessageValidator(),
		logger:    logger,
	}, nil
}

// Open dials the microphone and starts a capture. A failed dial or a
// refused capture wraps domain.ErrPermissionDenied.
func (w *WebSocketCapture) Open(ctx context.Context) (repositories.AudioStream, error) {
	dialer := websocket.Dialer{HandshakeTimeout: w.config.HandshakeTimeout}
	header := http.Header{}
	if w.config.Token != "" {
		header.Set("Authorization", "Bearer "+w.config.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, w.config.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial microphone: %s: %w", domain.ErrPermissionDenied, resp.Status, err)
		}
		return nil, fmt.Errorf("%w: dial microphone: %w", domain.ErrPermissionDenied, err)
	}

	sessionID, err := w.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	s := &wsStream{
		conn:        conn,
		sessionID:   sessionID,
		validator:   w.validator,
		stopTimeout: w.config.StopTimeout,
		chunks:      make(chan []byte, 64),
		done:        make(chan struct{}),
		logger:      w.logger.With(zap.String("sessionID", sessionID)),
	}
	go s.readLoop()

	w.logger.Info("Microphone capture started", zap.String("url", w.config.URL), zap.String("sessionID", sessionID))
	return s, nil
}

// handshake sends capture_start and waits for capture_started
func (w *WebSocketCapture) handshake(ctx context.Context, conn *websocket.Conn) (string, error) {
	// Unblock the read below when ctx ends
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(mic.CreateCaptureStartMessage(w.config.SampleRate, w.config.Encoding)); err != nil {
		return "", fmt.Errorf("%w: send capture_start: %w", domain.ErrPermissionDenied, err)
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("%w: await capture_started: %w", domain.ErrPermissionDenied, err)
		}
		if kind != websocket.TextMessage {
			continue
		}

		msg, err := w.validator.ValidateMessage(data)
		if err != nil {
			w.logger.Warn("Ignoring invalid frame from microphone", zap.Error(err))
			continue
		}

		switch m := msg.(type) {
		case *mic.CaptureStartedMessage:
			conn.SetReadDeadline(time.Time{})
			return m.SessionID, nil
		case *mic.ErrorMessage:
			return "", fmt.Errorf("%w: microphone refused capture: %w", domain.ErrPermissionDenied, m)
		}
	}
}

type wsStream struct {
	conn        *websocket.Conn
	sessionID   string
	validator   *mic.MessageValidator
	stopTimeout time.Duration
	chunks      chan []byte
	done        chan struct{}
	writeMu     sync.Mutex
	stopOnce    sync.Once
	logger      *zap.Logger
}

func (s *wsStream) Chunks() <-chan []byte {
	return s.chunks
}

// Stop sends capture_end. The chunk channel closes when capture_stopped
// arrives, or after the stop timeout.
func (s *wsStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = s.conn.WriteJSON(mic.CreateCaptureEndMessage(s.sessionID))
		s.writeMu.Unlock()

		if err != nil {
			// Nothing more will arrive
			s.conn.Close()
			err = fmt.Errorf("send capture_end: %w", err)
			return
		}

		time.AfterFunc(s.stopTimeout, func() {
			select {
			case <-s.done:
			default:
				s.logger.Warn("Microphone did not confirm stop, closing connection")
				s.conn.Close()
			}
		})
	})
	return err
}

// readLoop delivers binary frames until capture_stopped or disconnect
func (s *wsStream) readLoop() {
	defer close(s.done)
	defer close(s.chunks)
	defer s.conn.Close()

	chunkCount := 0
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.logger.Debug("Microphone connection ended", zap.Error(err))
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			chunkCount++
			s.chunks <- data

		case websocket.TextMessage:
			if s.handleControl(data, chunkCount) {
				return
			}
		}
	}
}

// handleControl reports whether the session has ended
func (s *wsStream) handleControl(data []byte, chunkCount int) bool {
	msg, err := s.validator.ValidateMessage(data)
	if err != nil {
		s.logger.Warn("Ignoring invalid frame from microphone", zap.Error(err))
		return false
	}

	switch m := msg.(type) {
	case *mic.CaptureStoppedMessage:
		if m.SessionID != s.sessionID {
			return false
		}
		if m.TotalChunks != chunkCount {
			s.logger.Warn("Chunk count mismatch",
				zap.Int("reported", m.TotalChunks),
				zap.Int("received", chunkCount))
		}
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		return true

	case *mic.ErrorMessage:
		s.logger.Warn("Microphone reported error", zap.String("code", m.Code), zap.String("message", m.Message))

	case *mic.PingMessage:
		payload, _ := json.Marshal(mic.CreatePongMessage(m.Data))
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		s.conn.WriteMessage(websocket.TextMessage, payload)
		s.writeMu.Unlock()
	}
	return false
}
