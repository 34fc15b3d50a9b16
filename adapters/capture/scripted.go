package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

// DefaultChunkInterval paces scripted playback
const DefaultChunkInterval = 20 * time.Millisecond

// ErrNoDevice is wrapped by Unavailable.Open
var ErrNoDevice = errors.New("no capture device configured")

// ScriptedCapture plays a fixed recording as if it came from a microphone.
// The stream ends by itself after the last chunk unless stopped earlier.
type ScriptedCapture struct {
	payload   []byte
	chunkSize int
	interval  time.Duration
	logger    *zap.Logger
}

var _ repositories.AudioCapture = (*ScriptedCapture)(nil)

// NewScriptedCapture creates a device replaying payload in chunkSize pieces
func NewScriptedCapture(payload []byte, chunkSize int, interval time.Duration, logger *zap.Logger) *ScriptedCapture {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if interval < 0 {
		interval = DefaultChunkInterval
	}
	return &ScriptedCapture{
		payload:   append([]byte(nil), payload...),
		chunkSize: chunkSize,
		interval:  interval,
		logger:    logger,
	}
}

// NewFileCapture creates a device replaying an audio file
func NewFileCapture(path string, chunkSize int, logger *zap.Logger) (*ScriptedCapture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture file: %w", err)
	}
	logger.Info("Loaded capture file", zap.String("path", path), zap.Int("bytes", len(data)))
	return NewScriptedCapture(data, chunkSize, DefaultChunkInterval, logger), nil
}

// Open implements repositories.AudioCapture
func (s *ScriptedCapture) Open(ctx context.Context) (repositories.AudioStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream := &scriptedStream{
		chunks: make(chan []byte),
		stop:   make(chan struct{}),
	}
	go stream.play(s.payload, s.chunkSize, s.interval)
	return stream, nil
}

type scriptedStream struct {
	chunks   chan []byte
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *scriptedStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *scriptedStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *scriptedStream) play(payload []byte, chunkSize int, interval time.Duration) {
	defer close(s.chunks)

	for start := 0; start < len(payload); start += chunkSize {
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}

		select {
		case s.chunks <- payload[start:end:end]:
		case <-s.stop:
			return
		}

		if interval > 0 {
			select {
			case <-time.After(interval):
			case <-s.stop:
				return
			}
		}
	}
}

// Unavailable is the device used when no capture backend is configured.
// Every Open is refused.
type Unavailable struct{}

var _ repositories.AudioCapture = Unavailable{}

// Open implements repositories.AudioCapture
func (Unavailable) Open(ctx context.Context) (repositories.AudioStream, error) {
	return nil, fmt.Errorf("%w: %w", domain.ErrPermissionDenied, ErrNoDevice)
}
