package mock

import (
	"bytes"
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

// ImageToText returns canned OCR output. Plain-text uploads are echoed back
// so scripted runs can choose what gets "recognised".
type ImageToText struct {
	logger *zap.Logger
}

var _ repositories.ImageToText = (*ImageToText)(nil)

// NewImageToText creates a new mock OCR service
func NewImageToText(logger *zap.Logger) *ImageToText {
	return &ImageToText{logger: logger}
}

// Recognize extracts text from an uploaded document
func (o *ImageToText) Recognize(filename string, image []byte) string {
	o.logger.Info("Processing mock OCR", zap.String("filename", filename), zap.Int("size", len(image)))

	if len(image) == 0 {
		return ""
	}
	if utf8.Valid(image) && !bytes.ContainsRune(image, 0) {
		return string(bytes.TrimSpace(image))
	}
	return "Prescription: Metformin 500 mg twice daily with meals. Review HbA1c in 3 months."
}

// ExtractText implements repositories.ImageToText
func (o *ImageToText) ExtractText(ctx context.Context, req entities.ExtractionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return o.Recognize(req.Filename, req.Payload), nil
}
