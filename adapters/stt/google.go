package stt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

const defaultLanguage = "en-US"

// GoogleConfig holds configuration for Google Cloud Speech-to-Text.
// Credentials come from Application Default Credentials.
// Optional fields with defaults:
// - LanguageCode: BCP-47 language (default: "en-US")
// - SampleRate: sample rate in Hz for headerless audio (default: taken from the file)
type GoogleConfig struct {
	LanguageCode string
	SampleRate   int
}

// ValidateGoogleConfig validates the GoogleConfig
func ValidateGoogleConfig(config GoogleConfig) error {
	if config.SampleRate < 0 || config.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 0 and 48000, got %d", config.SampleRate)
	}
	return nil
}

// GoogleSpeechToText transcribes uploaded recordings with Google Cloud
type GoogleSpeechToText struct {
	client *speech.Client
	config GoogleConfig
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a new Google Cloud speech client
func NewGoogleSpeechToText(ctx context.Context, config GoogleConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	if err := ValidateGoogleConfig(config); err != nil {
		return nil, err
	}
	if config.LanguageCode == "" {
		config.LanguageCode = defaultLanguage
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleSpeechToText{client: client, config: config, logger: logger}, nil
}

// TranscribeAudio implements repositories.SpeechToText
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, req entities.ExtractionRequest) (string, error) {
	if req.Empty() {
		return "", nil
	}

	encoding, err := encodingFor(req.ContentType, req.Filename)
	if err != nil {
		return "", err
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:     encoding,
		LanguageCode: g.config.LanguageCode,
	}
	if g.config.SampleRate > 0 {
		recognitionConfig.SampleRateHertz = int32(g.config.SampleRate)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: req.Payload},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize speech: %w", err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}
	text := strings.Join(parts, " ")

	g.logger.Info("Transcription completed",
		zap.String("encoding", encoding.String()),
		zap.Int("audioSize", len(req.Payload)),
		zap.Int("textLength", len(text)))
	return text, nil
}

// Close releases the client connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// encodingFor maps an upload's content type, or its file extension when the
// type is generic, to a Google Speech API encoding
func encodingFor(contentType, filename string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch ct {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/l16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "audio/flac", "audio/x-flac":
		return speechpb.RecognitionConfig_FLAC, nil
	case "audio/ogg", "audio/opus":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	case "audio/basic", "audio/mulaw":
		return speechpb.RecognitionConfig_MULAW, nil
	case "audio/amr":
		return speechpb.RecognitionConfig_AMR, nil
	case "audio/amr-wb":
		return speechpb.RecognitionConfig_AMR_WB, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case ".flac":
		return speechpb.RecognitionConfig_FLAC, nil
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case ".webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	}

	return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
		fmt.Errorf("unsupported audio encoding: %q (%s)", contentType, filename)
}
