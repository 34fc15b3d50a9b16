package api

import "time"

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// TokenRequest represents the request payload for a dev user token
type TokenRequest struct {
	UserID int `json:"user_id"`
}

// TokenResponse represents the response payload for a dev user token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int       `json:"user_id"`
}

// Error details returned in {"detail": ...} bodies
const (
	detailTextRequired    = "text required"
	detailMessageRequired = "message required"
	detailFileRequired    = "file required"
	detailGraphNotFound   = "No graph found"
	detailMissingToken    = "Not authenticated"
	detailInvalidToken    = "Invalid or expired token"
	detailUserMismatch    = "user_id does not match token"
	detailAuthDisabled    = "Token issuance is disabled"
	detailInvalidRequest  = "Invalid request format"

	detailAnswerFailed     = "Failed to generate answer"
	detailExtractionFailed = "Failed to extract text"
)
