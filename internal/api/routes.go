package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/domain/entities"
	"github.com/Suraj127-git/medchat/domain/repositories"
	"github.com/Suraj127-git/medchat/internal/auth"
	"github.com/Suraj127-git/medchat/internal/websocket"
)

// maxUploadSize bounds voice and image uploads
const maxUploadSize = 10 << 20

// Dependencies are the backends behind the dev routes
type Dependencies struct {
	Answers repositories.AnswerGenerator
	Speech  repositories.SpeechToText
	OCR     repositories.ImageToText
	Graphs  repositories.GraphRepository
	Hub     *websocket.Hub

	// JWTSecret enables bearer authentication when set
	JWTSecret []byte
	TokenTTL  time.Duration
}

type handlers struct {
	Dependencies
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	h := &handlers{Dependencies: deps, logger: logger}

	if len(deps.JWTSecret) > 0 {
		e.Use(BearerAuth(deps.JWTSecret, logger, "/health", "/api/v1/auth/token"))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: "medchat-devserver",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/token", h.issueToken)

	// Chat APIs
	v1.POST("/chat/query", h.chatQuery)
	v1.POST("/chat", h.legacyChat)

	// Extraction APIs
	v1.POST("/voice", h.transcribe)
	v1.POST("/ocr", h.recognize)

	// Reasoning graph
	v1.GET("/graph/:conv_id", h.getGraph)

	// Dev microphone
	e.GET("/ws/mic", h.microphone)
}

func (h *handlers) issueToken(c echo.Context) error {
	if len(h.JWTSecret) == 0 {
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{Detail: detailAuthDisabled})
	}

	var req TokenRequest
	if err := c.Bind(&req); err != nil || req.UserID <= 0 {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Detail: detailInvalidRequest})
	}

	ttl := h.TokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}
	token, err := auth.GenerateUserToken(req.UserID, h.JWTSecret, ttl)
	if err != nil {
		h.logger.Error("Failed to generate user token", zap.Int("userID", req.UserID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Detail: "Failed to generate token"})
	}

	h.logger.Info("Issued dev token", zap.Int("userID", req.UserID))
	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
		UserID:    req.UserID,
	})
}

func (h *handlers) chatQuery(c echo.Context) error {
	var req domain.ChatQueryRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("Failed to bind chat request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Detail: detailInvalidRequest})
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Detail: detailTextRequired})
	}
	if claims := claimsFrom(c); claims != nil && claims.Role == auth.RoleUser && claims.UserID != req.UserID {
		return c.JSON(http.StatusForbidden, domain.ErrorResponse{Detail: detailUserMismatch})
	}

	// Echo the id back in the JSON type the client used
	var wireID domain.ConvID
	if req.ConvID != nil {
		wireID = *req.ConvID
	}
	if wireID.ID == "" {
		wireID = domain.ConvID{ID: uuid.NewString()}
	}
	convID := wireID.ID

	ctx := c.Request().Context()
	answer, err := h.Answers.Answer(ctx, text)
	if err != nil {
		h.logger.Error("Failed to generate answer", zap.String("convID", convID), zap.Error(err))
		return c.JSON(http.StatusBadGateway, domain.ErrorResponse{Detail: detailAnswerFailed})
	}

	err = h.Graphs.RecordTurn(ctx, convID, repositories.GraphTurn{
		UserID:   req.UserID,
		Question: text,
		Answer:   answer.Text,
		Sources:  answer.Sources,
	})
	if err != nil {
		h.logger.Warn("Failed to record reasoning graph", zap.String("convID", convID), zap.Error(err))
	}

	h.logger.Info("Answered chat query",
		zap.Int("userID", req.UserID),
		zap.String("convID", convID),
		zap.Int("sources", len(answer.Sources)))

	return c.JSON(http.StatusOK, domain.ChatQueryResponse{
		Answer: answer.Text,
		ConvID: wireID,
	})
}

func (h *handlers) legacyChat(c echo.Context) error {
	var req domain.LegacyChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Detail: detailInvalidRequest})
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Detail: detailMessageRequired})
	}

	answer, err := h.Answers.Answer(c.Request().Context(), message)
	if err != nil {
		h.logger.Error("Failed to generate answer", zap.Error(err))
		return c.JSON(http.StatusBadGateway, domain.ErrorResponse{Detail: detailAnswerFailed})
	}
	return c.JSON(http.StatusOK, domain.LegacyChatResponse{Response: answer.Text})
}

func (h *handlers) transcribe(c echo.Context) error {
	req, err := readUpload(c, entities.ExtractionVoice)
	if err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Detail: detailFileRequired})
	}

	text, err := h.Speech.TranscribeAudio(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("Transcription failed", zap.String("filename", req.Filename), zap.Error(err))
		return c.JSON(http.StatusBadGateway, domain.ErrorResponse{Detail: detailExtractionFailed})
	}
	return c.JSON(http.StatusOK, domain.TranscriptionResponse{Text: text})
}

func (h *handlers) recognize(c echo.Context) error {
	req, err := readUpload(c, entities.ExtractionImage)
	if err != nil {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Detail: detailFileRequired})
	}

	text, err := h.OCR.ExtractText(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("OCR failed", zap.String("filename", req.Filename), zap.Error(err))
		return c.JSON(http.StatusBadGateway, domain.ErrorResponse{Detail: detailExtractionFailed})
	}
	return c.JSON(http.StatusOK, domain.OCRResponse{Text: text})
}

func (h *handlers) getGraph(c echo.Context) error {
	graph, err := h.Graphs.Get(c.Request().Context(), c.Param("conv_id"))
	if errors.Is(err, repositories.ErrGraphNotFound) {
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{Detail: detailGraphNotFound})
	}
	if err != nil {
		h.logger.Error("Failed to load graph", zap.String("convID", c.Param("conv_id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Detail: "Failed to load graph"})
	}

	return c.JSONBlob(http.StatusOK, graph.Raw)
}

// microphone upgrades to the dev microphone protocol
func (h *handlers) microphone(c echo.Context) error {
	var clientID string
	if claims := claimsFrom(c); claims != nil {
		switch claims.Role {
		case auth.RoleDevice:
			clientID = claims.DeviceID
		default:
			clientID = fmt.Sprintf("user-%d", claims.UserID)
		}
	}

	return h.Hub.HandleWebSocket(c, clientID)
}

// readUpload reads the multipart "file" field
func readUpload(c echo.Context, kind entities.ExtractionKind) (entities.ExtractionRequest, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return entities.ExtractionRequest{}, err
	}
	if fh.Size > maxUploadSize {
		return entities.ExtractionRequest{}, fmt.Errorf("upload of %d bytes exceeds limit", fh.Size)
	}

	f, err := fh.Open()
	if err != nil {
		return entities.ExtractionRequest{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		return entities.ExtractionRequest{}, err
	}
	return entities.ExtractionRequest{
		Kind:        kind,
		Payload:     data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
	}, nil
}
