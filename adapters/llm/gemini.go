package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/Suraj127-git/medchat/domain/repositories"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = 0.2
	defaultMaxOutputTokens = 1024
	defaultTimeout         = 30 * time.Second
	maxAttempts            = 3

	systemPrompt = "You are a careful medical information assistant. Answer in plain language, " +
		"in at most three short paragraphs. Say when a symptom needs urgent care. " +
		"Never present your answer as a diagnosis and suggest confirming treatment changes with a clinician."
)

// ErrEmptyAnswer is returned when the model produced no text
var ErrEmptyAnswer = errors.New("model returned no text")

// GeminiConfig holds configuration for the Gemini answer generator
// Required fields:
// - APIKey: Gemini API key
// Optional fields with defaults:
// - Model: model name (default: "gemini-2.0-flash")
// - Temperature: 0 to 1 (default: 0.2)
// - MaxOutputTokens: answer length cap (default: 1024)
// - Timeout: per-question timeout including retries (default: 30s)
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	Timeout         time.Duration
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Gemini API key is required")
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// GeminiAnswerer answers medical questions with Google's Gemini API
type GeminiAnswerer struct {
	client *genai.Client
	config GeminiConfig
	logger *zap.Logger
}

var _ repositories.AnswerGenerator = (*GeminiAnswerer)(nil)

// NewGeminiAnswerer creates a new Gemini answer generator
func NewGeminiAnswerer(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiAnswerer, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	if config.Model == "" {
		config.Model = defaultModel
		logger.Info("Using default model", zap.String("model", config.Model))
	}
	if config.Temperature == 0 {
		config.Temperature = defaultTemperature
	}
	if config.MaxOutputTokens == 0 {
		config.MaxOutputTokens = defaultMaxOutputTokens
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiAnswerer{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Answer implements repositories.AnswerGenerator
func (g *GeminiAnswerer) Answer(ctx context.Context, question string) (repositories.GeneratedAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromText(question, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.config.Temperature),
		MaxOutputTokens:   int32(g.config.MaxOutputTokens),
	}

	var (
		response *genai.GenerateContentResponse
		err      error
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.config.Model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return repositories.GeneratedAnswer{}, ctx.Err()
			}
		}
	}
	if err != nil {
		return repositories.GeneratedAnswer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	answer, err := answerFromResponse(response)
	if err != nil {
		return repositories.GeneratedAnswer{}, err
	}

	g.logger.Info("Answer generated",
		zap.String("model", g.config.Model),
		zap.Int("questionLength", len(question)),
		zap.Int("answerLength", len(answer.Text)),
		zap.Int("sources", len(answer.Sources)))
	return answer, nil
}

// answerFromResponse joins the text parts of the first candidate and
// collects its citations as sources
func answerFromResponse(response *genai.GenerateContentResponse) (repositories.GeneratedAnswer, error) {
	if response == nil || len(response.Candidates) == 0 {
		return repositories.GeneratedAnswer{}, ErrEmptyAnswer
	}
	candidate := response.Candidates[0]
	if candidate.Content == nil {
		return repositories.GeneratedAnswer{}, ErrEmptyAnswer
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return repositories.GeneratedAnswer{}, ErrEmptyAnswer
	}

	var sources []string
	if candidate.CitationMetadata != nil {
		seen := make(map[string]bool)
		for _, c := range candidate.CitationMetadata.Citations {
			if c == nil {
				continue
			}
			source := c.URI
			if source == "" {
				source = c.Title
			}
			if source != "" && !seen[source] {
				seen[source] = true
				sources = append(sources, source)
			}
		}
	}

	return repositories.GeneratedAnswer{Text: strings.TrimSpace(text.String()), Sources: sources}, nil
}
