package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
	"github.com/Suraj127-git/medchat/internal/pipeline"
)

// Data keys for the extraction pipeline
const (
	dataKeyKind = "kind"
	dataKeyText = "text"
)

// extractStep uploads the buffer to the service matching its kind
type extractStep struct {
	stt    repositories.SpeechToText
	ocr    repositories.ImageToText
	req    entities.ExtractionRequest
	logger *zap.Logger
}

func newExtractStep(stt repositories.SpeechToText, ocr repositories.ImageToText, req entities.ExtractionRequest, logger *zap.Logger) *extractStep {
	return &extractStep{stt: stt, ocr: ocr, req: req, logger: logger}
}

func (s *extractStep) ID() pipeline.StepID {
	return "extract"
}

func (s *extractStep) Execute(ctx context.Context, data pipeline.Data) pipeline.StepResult {
	var (
		text string
		err  error
	)

	switch s.req.Kind {
	case entities.ExtractionVoice:
		if s.stt == nil {
			return pipeline.StepResult{Error: errors.New("no transcription service configured")}
		}
		text, err = s.stt.TranscribeAudio(ctx, s.req)
	case entities.ExtractionImage:
		if s.ocr == nil {
			return pipeline.StepResult{Error: errors.New("no OCR service configured")}
		}
		text, err = s.ocr.ExtractText(ctx, s.req)
	default:
		err = fmt.Errorf("unsupported extraction kind %q", s.req.Kind)
	}
	if err != nil {
		return pipeline.StepResult{Error: err}
	}

	text = strings.TrimSpace(text)
	data[dataKeyText] = text

	s.logger.Info("Extraction completed",
		zap.String("kind", string(s.req.Kind)),
		zap.Int("payloadBytes", len(s.req.Payload)),
		zap.Int("textLength", len(text)))

	// Nothing recognised: stop without forwarding
	return pipeline.StepResult{Data: text, Skip: text == ""}
}

// forwardStep hands the extracted text to the conversation
type forwardStep struct {
	sink   TextSink
	logger *zap.Logger
}

func newForwardStep(sink TextSink, logger *zap.Logger) *forwardStep {
	return &forwardStep{sink: sink, logger: logger}
}

func (s *forwardStep) ID() pipeline.StepID {
	return "forward"
}

func (s *forwardStep) Execute(ctx context.Context, data pipeline.Data) pipeline.StepResult {
	text := data.String(dataKeyText)
	if s.sink.SendText(text) == nil {
		s.logger.Debug("Forward ignored blank text")
	}
	return pipeline.StepResult{Data: text}
}
