package medapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
)

// Variant selects which chat contract the backend speaks
type Variant string

const (
	// VariantQuery is POST /api/v1/chat/query with conversation continuity
	VariantQuery Variant = "query"
	// VariantLegacy is POST /api/v1/chat without conversation continuity
	VariantLegacy Variant = "legacy"
)

const (
	defaultBaseURL   = "http://localhost:8000"
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "medchat"
	maxErrorBody     = 4 << 10

	pathChatQuery = "/api/v1/chat/query"
	pathChat      = "/api/v1/chat"
	pathVoice     = "/api/v1/voice"
	pathOCR       = "/api/v1/ocr"
	pathGraph     = "/api/v1/graph/"

	uploadField = "file"
)

// Config holds configuration for the backend client
// Optional fields with defaults:
// - BaseURL: backend root (default: "http://localhost:8000")
// - Variant: chat contract, "query" or "legacy" (default: "query")
// - Token: bearer token sent on every call (default: none)
// - Timeout: per-request timeout (default: 30s)
type Config struct {
	BaseURL string
	Variant Variant
	Token   string
	Timeout time.Duration
}

// Client talks to the medical QA backend over HTTP
type Client struct {
	baseURL    string
	variant    Variant
	token      string
	httpClient *http.Client
	logger     *zap.Logger

	// ids the backend issued as JSON numbers
	mu         sync.Mutex
	numericIDs map[string]bool
}

var (
	_ repositories.ChatBackend  = (*Client)(nil)
	_ repositories.SpeechToText = (*Client)(nil)
	_ repositories.ImageToText  = (*Client)(nil)
	_ repositories.GraphSource  = (*Client)(nil)
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

// Unwrap makes every API error a network failure
func (e *APIError) Unwrap() error {
	return domain.ErrNetwork
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.BaseURL != "" {
		u, err := url.Parse(config.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base URL must be http or https, got %q", config.BaseURL)
		}
	}

	switch config.Variant {
	case "", VariantQuery, VariantLegacy:
	default:
		return fmt.Errorf("unknown API variant %q", config.Variant)
	}

	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}

	return nil
}

// NewClient creates a new backend client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
		logger.Info("Using default API base URL", zap.String("baseURL", baseURL))
	}

	variant := config.Variant
	if variant == "" {
		variant = VariantQuery
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		variant:    variant,
		token:      config.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		numericIDs: make(map[string]bool),
	}, nil
}

// Variant returns the chat contract in use
func (c *Client) Variant() Variant {
	return c.variant
}

// Ask implements repositories.ChatBackend. The legacy variant never returns
// a conversation id.
func (c *Client) Ask(ctx context.Context, userID int, text, convID string) (domain.ChatReply, error) {
	if c.variant == VariantLegacy {
		var resp domain.LegacyChatResponse
		if err := c.postJSON(ctx, pathChat, domain.LegacyChatRequest{Message: text}, &resp); err != nil {
			return domain.ChatReply{}, err
		}
		return domain.ChatReply{Answer: resp.Response}, nil
	}

	req := domain.ChatQueryRequest{
		UserID: userID,
		Text:   text,
		ConvID: c.wireConvID(convID),
	}
	var resp domain.ChatQueryResponse
	if err := c.postJSON(ctx, pathChatQuery, req, &resp); err != nil {
		return domain.ChatReply{}, err
	}
	if resp.ConvID.Numeric {
		c.mu.Lock()
		c.numericIDs[resp.ConvID.ID] = true
		c.mu.Unlock()
	}
	return domain.ChatReply{Answer: resp.Answer, ConvID: resp.ConvID.ID}, nil
}

// wireConvID returns convID in the JSON type the backend issued it with.
// Ids this client never received, such as a resumed one, go out as strings.
func (c *Client) wireConvID(convID string) *domain.ConvID {
	if convID == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &domain.ConvID{ID: convID, Numeric: c.numericIDs[convID]}
}

// TranscribeAudio implements repositories.SpeechToText
func (c *Client) TranscribeAudio(ctx context.Context, req entities.ExtractionRequest) (string, error) {
	var resp domain.TranscriptionResponse
	if err := c.upload(ctx, pathVoice, req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ExtractText implements repositories.ImageToText
func (c *Client) ExtractText(ctx context.Context, req entities.ExtractionRequest) (string, error) {
	var resp domain.OCRResponse
	if err := c.upload(ctx, pathOCR, req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// FetchGraph implements repositories.GraphSource. The graph is returned as
// received.
func (c *Client) FetchGraph(ctx context.Context, convID string) (*entities.ReasoningGraph, error) {
	if convID == "" {
		return nil, domain.ErrNoContinuityID
	}

	httpReq, err := c.newRequest(ctx, http.MethodGet, pathGraph+url.PathEscape(convID), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: graph response is not JSON", domain.ErrNetwork)
	}

	return &entities.ReasoningGraph{ConvID: convID, Raw: json.RawMessage(body)}, nil
}

// Health checks that the backend is reachable
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	_, err = c.do(httpReq)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(requestBody))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// upload sends req as a single multipart "file" field
func (c *Client) upload(ctx context.Context, path string, req entities.ExtractionRequest, out interface{}) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadField, escapeQuotes(req.Filename)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(req.Payload); err != nil {
		return fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart body: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debug("Uploading file",
		zap.String("path", path),
		zap.String("filename", req.Filename),
		zap.Int("size", len(req.Payload)))

	body, err := c.do(httpReq)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", defaultUserAgent)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	return httpReq, nil
}

// do executes the request and returns the body of a 2xx response
func (c *Client) do(httpReq *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Failed to execute HTTP request",
			zap.String("method", httpReq.Method),
			zap.String("url", httpReq.URL.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(errorBody)}
		c.logger.Error("Backend returned error",
			zap.String("url", httpReq.URL.String()),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("detail", apiErr.Detail))
		return nil, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrNetwork, err)
	}

	c.logger.Debug("Backend request completed",
		zap.String("method", httpReq.Method),
		zap.String("url", httpReq.URL.String()),
		zap.Int("statusCode", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return body, nil
}

func decode(body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", domain.ErrNetwork, err)
	}
	return nil
}

// errorDetail extracts the "detail" member of an error body. Structured
// details are returned as compact JSON; non-JSON bodies are returned trimmed.
func errorDetail(body []byte) string {
	var resp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var s string
	if err := json.Unmarshal(resp.Detail, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, resp.Detail); err != nil {
		return string(resp.Detail)
	}
	return compact.String()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
