package usecase

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
	"github.com/Suraj127-git/medchat/internal/pipeline"
)

// TextSink receives extracted text as if the user had typed it
type TextSink interface {
	SendText(text string) *Turn
}

// GatewayConfig tunes the extraction gateway
type GatewayConfig struct {
	Timeout time.Duration
}

// ExtractionGateway turns a voice recording or an image into text and
// forwards the text to the conversation
type ExtractionGateway struct {
	stt      repositories.SpeechToText
	ocr      repositories.ImageToText
	sink     TextSink
	notifier repositories.Notifier
	runner   *pipeline.Runner
	cfg      GatewayConfig
	logger   *zap.Logger
}

var _ VoiceSubmitter = (*ExtractionGateway)(nil)

// NewExtractionGateway creates a new extraction gateway
func NewExtractionGateway(
	stt repositories.SpeechToText,
	ocr repositories.ImageToText,
	sink TextSink,
	notifier repositories.Notifier,
	cfg GatewayConfig,
	logger *zap.Logger,
) *ExtractionGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	return &ExtractionGateway{
		stt:      stt,
		ocr:      ocr,
		sink:     sink,
		notifier: notifier,
		runner:   pipeline.NewRunner(logger.Named("pipeline")),
		cfg:      cfg,
		logger:   logger,
	}
}

// Submit uploads req and forwards the extracted text. An empty payload is a
// no-op. Failures raise one notice, forward nothing and wrap
// domain.ErrExtraction.
func (g *ExtractionGateway) Submit(ctx context.Context, req entities.ExtractionRequest) (string, error) {
	if req.Empty() {
		g.logger.Debug("Skipping empty extraction request", zap.String("kind", string(req.Kind)))
		return "", nil
	}
	if err := req.Validate(); err != nil {
		return "", g.fail(req.Kind, err)
	}

	data := pipeline.Data{dataKeyKind: string(req.Kind)}
	def := pipeline.Definition{
		Name:    "extract_" + string(req.Kind),
		Timeout: g.cfg.Timeout,
		Steps: []pipeline.Step{
			newExtractStep(g.stt, g.ocr, req, g.logger),
			newForwardStep(g.sink, g.logger),
		},
	}

	if _, err := g.runner.Run(ctx, def, data); err != nil {
		return "", g.fail(req.Kind, err)
	}

	return data.String(dataKeyText), nil
}

// SubmitFile reads an image or recording from disk and submits it
func (g *ExtractionGateway) SubmitFile(ctx context.Context, kind entities.ExtractionKind, path string) (string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", g.fail(kind, fmt.Errorf("read %s: %w", path, err))
	}

	return g.Submit(ctx, entities.ExtractionRequest{
		Kind:        kind,
		Payload:     payload,
		Filename:    filepath.Base(path),
		ContentType: contentTypeFor(path),
	})
}

// Runs exposes the pipeline history for diagnostics
func (g *ExtractionGateway) Runs() *pipeline.Runner {
	return g.runner
}

func (g *ExtractionGateway) fail(kind entities.ExtractionKind, err error) error {
	channel, text := entities.ChannelVoice, domain.VoiceFailureMessage
	if kind == entities.ExtractionImage {
		channel, text = entities.ChannelImage, domain.ImageFailureMessage
	}

	g.logger.Error("Extraction failed", zap.String("kind", string(kind)), zap.Error(err))
	g.notifier.Notify(entities.NoticeNetworkFailure, channel, text)

	return fmt.Errorf("%w: %w", domain.ErrExtraction, err)
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
