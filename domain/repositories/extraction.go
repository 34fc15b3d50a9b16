package repositories

import (
	"context"

	"github.com/Suraj127-git/medchat/domain/entities"
)

// SpeechToText abstracts the remote transcription service
type SpeechToText interface {
	// TranscribeAudio uploads one recorded buffer and returns its text
	TranscribeAudio(ctx context.Context, req entities.ExtractionRequest) (string, error)
}

// ImageToText abstracts the remote OCR service
type ImageToText interface {
	// ExtractText uploads one image and returns the recognised text
	ExtractText(ctx context.Context, req entities.ExtractionRequest) (string, error)
}
