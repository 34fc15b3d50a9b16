package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

const (
	DefaultChunkSize = 4096

	// A recorder that ignores the interrupt is killed after this long
	stopGrace = 3 * time.Second
)

// CommandConfig holds the recorder command configuration
//
// Fields:
//   - Command: recorder command line writing audio to stdout
//   - ChunkSize: bytes per delivered chunk
type CommandConfig struct {
	Command   string
	ChunkSize int
}

// ValidateCommandConfig validates the recorder configuration
func ValidateCommandConfig(config CommandConfig) error {
	if len(strings.Fields(config.Command)) == 0 {
		return errors.New("recorder command is required")
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must not be negative, got %d", config.ChunkSize)
	}
	return nil
}

// CommandCapture records by running an external recorder process and
// streaming its stdout
type CommandCapture struct {
	args      []string
	chunkSize int
	logger    *zap.Logger
}

var _ repositories.AudioCapture = (*CommandCapture)(nil)

// NewCommandCapture creates a recorder-backed capture device
func NewCommandCapture(config CommandConfig, logger *zap.Logger) (*CommandCapture, error) {
	if err := ValidateCommandConfig(config); err != nil {
		return nil, fmt.Errorf("invalid recorder config: %w", err)
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultChunkSize
	}
	return &CommandCapture{
		args:      strings.Fields(config.Command),
		chunkSize: config.ChunkSize,
		logger:    logger,
	}, nil
}

// Open starts the recorder and waits for its first audio bytes. A recorder
// that cannot start or exits before producing audio is reported as a
// refused device.
func (c *CommandCapture) Open(ctx context.Context) (repositories.AudioStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(c.args[0], c.args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start recorder: %w", domain.ErrPermissionDenied, err)
	}

	s := &commandStream{
		cmd:       cmd,
		stdout:    stdout,
		stderr:    stderr,
		chunkSize: c.chunkSize,
		chunks:    make(chan []byte, 16),
		abort:     make(chan struct{}),
		exited:    make(chan struct{}),
		logger:    c.logger.With(zap.String("recorder", c.args[0])),
	}

	first := make(chan error, 1)
	go s.read(first)

	select {
	case err := <-first:
		if err != nil {
			<-s.exited
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				detail = err.Error()
			}
			return nil, fmt.Errorf("%w: recorder produced no audio: %s", domain.ErrPermissionDenied, detail)
		}
	case <-ctx.Done():
		close(s.abort)
		s.kill()
		<-s.exited
		return nil, ctx.Err()
	}

	c.logger.Info("Recorder started", zap.Int("pid", cmd.Process.Pid))
	return s, nil
}

type commandStream struct {
	cmd       *exec.Cmd
	stdout    io.Reader
	stderr    *bytes.Buffer
	chunkSize int
	chunks    chan []byte
	abort     chan struct{}
	exited    chan struct{}
	stopOnce  sync.Once
	logger    *zap.Logger
}

func (s *commandStream) Chunks() <-chan []byte {
	return s.chunks
}

// Stop interrupts the recorder. The chunk channel closes once its stdout
// reaches EOF.
func (s *commandStream) Stop() error {
	s.stopOnce.Do(func() {
		if sigErr := s.cmd.Process.Signal(os.Interrupt); sigErr != nil && !errors.Is(sigErr, os.ErrProcessDone) {
			s.logger.Debug("Interrupt not delivered, killing recorder", zap.Error(sigErr))
			s.kill()
		}
		time.AfterFunc(stopGrace, func() {
			select {
			case <-s.exited:
			default:
				s.logger.Warn("Recorder ignored interrupt, killing it")
				s.kill()
			}
		})
	})
	return nil
}

func (s *commandStream) kill() {
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("Failed to kill recorder", zap.Error(err))
	}
}

// read delivers stdout in chunkSize pieces. The first read result is
// reported on first.
func (s *commandStream) read(first chan<- error) {
	defer close(s.exited)
	defer close(s.chunks)

	buf := make([]byte, s.chunkSize)
	started := false
	totalBytes := 0
	chunkCount := 0

	for {
		n, err := io.ReadFull(s.stdout, buf)
		if n > 0 {
			if !started {
				started = true
				first <- nil
			}
			totalBytes += n
			chunkCount++

			// Create a copy of the data to send
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			select {
			case s.chunks <- chunk:
			case <-s.abort:
				s.finish(started)
				return
			}
		}

		if err != nil {
			if !started {
				first <- err
			} else if err != io.EOF && err != io.ErrUnexpectedEOF {
				s.logger.Error("Error reading recorder output", zap.Error(err))
			}
			break
		}
	}

	s.finish(started)
	s.logger.Info("Recorder stream ended",
		zap.Int("totalChunks", chunkCount),
		zap.Int("totalBytes", totalBytes))
}

func (s *commandStream) finish(started bool) {
	if err := s.cmd.Wait(); err != nil && started {
		// An interrupted recorder usually exits non-zero
		s.logger.Debug("Recorder exited", zap.Error(err))
	}
}
