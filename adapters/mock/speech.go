package mock

import (
	"context"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

// SpeechToText returns canned transcriptions chosen by recording size
type SpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*SpeechToText)(nil)

// NewSpeechToText creates a new mock speech-to-text service
func NewSpeechToText(logger *zap.Logger) *SpeechToText {
	return &SpeechToText{logger: logger}
}

// Transcribe maps an audio size to a canned sentence
func (s *SpeechToText) Transcribe(audio []byte) string {
	s.logger.Info("Processing mock speech-to-text", zap.Int("audioSize", len(audio)))

	switch {
	case len(audio) > 64*1024:
		return "I have had a headache and a mild fever since yesterday."
	case len(audio) > 16*1024:
		return "What is a normal blood pressure?"
	case len(audio) > 0:
		return "Hello doctor."
	default:
		return ""
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *SpeechToText) TranscribeAudio(ctx context.Context, req entities.ExtractionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Transcribe(req.Payload), nil
}
