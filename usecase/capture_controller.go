package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

const (
	DefaultVoiceFilename    = "voice.webm"
	DefaultVoiceContentType = "audio/webm"
)

// VoiceSubmitter receives the recorded buffer once capture stops
type VoiceSubmitter interface {
	Submit(ctx context.Context, req entities.ExtractionRequest) (string, error)
}

// CaptureConfig names the uploaded recording
type CaptureConfig struct {
	Filename    string
	ContentType string
	EventBuffer int
}

// CaptureEvent reports a state transition of the capture controller
type CaptureEvent struct {
	From   entities.CaptureState
	To     entities.CaptureState
	Chunks int
	At     time.Time
}

// CaptureController drives the voice capture state machine:
// idle -> requesting -> recording -> finalizing -> idle, with requesting ->
// error -> idle on a refused device. Only this controller touches the device.
type CaptureController struct {
	device    repositories.AudioCapture
	submitter VoiceSubmitter
	notifier  repositories.Notifier
	cfg       CaptureConfig
	logger    *zap.Logger

	mu         sync.Mutex
	state      entities.CaptureState
	session    *entities.CaptureSession
	stream     repositories.AudioStream
	pumpDone   chan struct{}
	cancelOpen context.CancelFunc
	gen        uint64
	closed     bool

	events chan CaptureEvent
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCaptureController creates a capture controller in the idle state
func NewCaptureController(
	device repositories.AudioCapture,
	submitter VoiceSubmitter,
	notifier repositories.Notifier,
	cfg CaptureConfig,
	logger *zap.Logger,
) *CaptureController {
	if cfg.Filename == "" {
		cfg.Filename = DefaultVoiceFilename
	}
	if cfg.ContentType == "" {
		cfg.ContentType = DefaultVoiceContentType
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CaptureController{
		device:    device,
		submitter: submitter,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		state:     entities.CaptureIdle,
		session:   entities.NewCaptureSession(),
		events:    make(chan CaptureEvent, cfg.EventBuffer),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Toggle is the single start/stop gesture. It returns the state after the
// gesture and whether the gesture was accepted. Gestures arriving while the
// device is being requested or the recording is being finalized are ignored.
func (c *CaptureController) Toggle(ctx context.Context) (entities.CaptureState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.state.AcceptsToggle() {
		c.logger.Debug("Capture toggle ignored", zap.String("state", string(c.state)))
		return c.state, false
	}

	switch c.state {
	case entities.CaptureIdle:
		c.gen++
		openCtx, cancel := context.WithCancel(ctx)
		c.cancelOpen = cancel
		c.setState(entities.CaptureRequesting)
		c.wg.Add(1)
		go c.acquire(openCtx, c.gen)

	case entities.CaptureRecording:
		c.setState(entities.CaptureFinalizing)
		stream, pumpDone, gen := c.stream, c.pumpDone, c.gen
		if err := stream.Stop(); err != nil {
			c.logger.Warn("Failed to stop capture device", zap.Error(err))
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.finalize(pumpDone, gen)
		}()
	}

	return c.state, true
}

// acquire opens the device outside the lock and moves to recording or error
func (c *CaptureController) acquire(ctx context.Context, gen uint64) {
	defer c.wg.Done()

	stream, err := c.device.Open(ctx)

	c.mu.Lock()
	if c.gen != gen || c.state != entities.CaptureRequesting {
		c.mu.Unlock()
		if err == nil {
			c.release(stream)
		}
		return
	}
	c.cancelOpen()
	c.cancelOpen = nil

	if err != nil {
		c.setState(entities.CaptureError)
		c.mu.Unlock()

		c.logger.Warn("Capture device unavailable", zap.Error(err))
		c.notifier.Notify(entities.NoticePermissionDenied, entities.ChannelCapture, domain.PermissionDeniedMessage)

		c.mu.Lock()
		if c.gen == gen && c.state == entities.CaptureError {
			c.setState(entities.CaptureIdle)
		}
		c.mu.Unlock()
		return
	}

	c.session.Reset()
	c.stream = stream
	c.pumpDone = make(chan struct{})
	c.setState(entities.CaptureRecording)
	pumpDone := c.pumpDone
	c.mu.Unlock()

	c.logger.Info("Capture started")

	c.wg.Add(1)
	go c.pump(stream, pumpDone, gen)
}

// pump buffers data-available chunks until the device closes the stream
func (c *CaptureController) pump(stream repositories.AudioStream, pumpDone chan struct{}, gen uint64) {
	defer c.wg.Done()

	for chunk := range stream.Chunks() {
		c.mu.Lock()
		if c.gen == gen {
			c.session.Append(chunk)
		}
		c.mu.Unlock()
	}
	close(pumpDone)

	c.mu.Lock()
	selfEnded := c.gen == gen && c.state == entities.CaptureRecording
	if selfEnded {
		c.logger.Info("Capture stream ended by device")
		c.setState(entities.CaptureFinalizing)
	}
	c.mu.Unlock()

	if selfEnded {
		c.finalize(pumpDone, gen)
	}
}

// finalize waits for the last chunk, submits the recording and returns to
// idle whatever the outcome of the submission
func (c *CaptureController) finalize(pumpDone chan struct{}, gen uint64) {
	<-pumpDone

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	chunks := c.session.ChunkCount()
	payload := c.session.Drain()
	c.stream = nil
	c.pumpDone = nil
	c.mu.Unlock()

	c.logger.Info("Capture finalized", zap.Int("chunks", chunks), zap.Int("bytes", len(payload)))

	req := entities.ExtractionRequest{
		Kind:        entities.ExtractionVoice,
		Payload:     payload,
		Filename:    c.cfg.Filename,
		ContentType: c.cfg.ContentType,
	}
	if _, err := c.submitter.Submit(c.ctx, req); err != nil {
		c.logger.Warn("Voice submission failed", zap.Error(err))
	}

	c.mu.Lock()
	if c.gen == gen && c.state == entities.CaptureFinalizing {
		c.setState(entities.CaptureIdle)
	}
	c.mu.Unlock()
}

// release stops a stream nobody will read and drains it
func (c *CaptureController) release(stream repositories.AudioStream) {
	if err := stream.Stop(); err != nil {
		c.logger.Warn("Failed to release capture device", zap.Error(err))
	}
	for range stream.Chunks() {
	}
}

// State returns the current capture state
func (c *CaptureController) State() entities.CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the state transition stream
func (c *CaptureController) Events() <-chan CaptureEvent {
	return c.events
}

// Close abandons any capture in progress without submitting it, releases the
// device and waits for background work to finish
func (c *CaptureController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	if c.cancelOpen != nil {
		c.cancelOpen()
		c.cancelOpen = nil
	}
	if c.stream != nil {
		if err := c.stream.Stop(); err != nil {
			c.logger.Warn("Failed to stop capture device", zap.Error(err))
		}
		c.stream = nil
	}
	c.session.Reset()
	if c.state != entities.CaptureIdle {
		c.setState(entities.CaptureIdle)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// setState records a transition. Caller holds c.mu.
func (c *CaptureController) setState(to entities.CaptureState) {
	from := c.state
	c.state = to
	if to == entities.CaptureIdle {
		c.session.Reset()
	}

	c.logger.Debug("Capture state changed", zap.String("from", string(from)), zap.String("to", string(to)))

	select {
	case c.events <- CaptureEvent{From: from, To: to, Chunks: c.session.ChunkCount(), At: time.Now()}:
	default:
	}
}
