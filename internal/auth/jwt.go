package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried by tokens
const (
	RoleUser   = "user"
	RoleDevice = "device"
)

// DefaultTokenTTL is the lifetime of generated tokens
const DefaultTokenTTL = 7 * 24 * time.Hour

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	UserID   int    `json:"user_id,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateUserToken generates a JWT token identifying a chat user
func GenerateUserToken(userID int, secret []byte, ttl time.Duration) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("user id must be positive, got %d", userID)
	}
	return sign(&JWTClaims{UserID: userID, Role: RoleUser}, secret, ttl)
}

// GenerateDeviceToken generates a JWT token for a capture device
func GenerateDeviceToken(deviceID string, secret []byte, ttl time.Duration) (string, error) {
	if deviceID == "" {
		return "", errors.New("device id is required")
	}
	return sign(&JWTClaims{DeviceID: deviceID, Role: RoleDevice}, secret, ttl)
}

func sign(claims *JWTClaims, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string, secret []byte) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}

// UserIDFromToken reads the user id claim without verifying the signature.
// The client uses it to fill user_id when only a token is configured; the
// backend still verifies the token.
func UserIDFromToken(tokenString string) (int, error) {
	claims := &JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.UserID <= 0 {
		return 0, errors.New("token carries no user id")
	}
	return claims.UserID, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
