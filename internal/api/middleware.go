package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Suraj127-git/medchat/domain"
	"github.com/Suraj127-git/medchat/internal/auth"
)

const claimsKey = "claims"

// BearerAuth rejects requests without a valid HS256 bearer token. Paths in
// public are let through.
func BearerAuth(secret []byte, logger *zap.Logger, public ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, p := range public {
				if path == p || strings.HasPrefix(path, p+"/") {
					return next(c)
				}
			}

			token, ok := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				logger.Warn("Request rejected: missing token", zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, domain.ErrorResponse{Detail: detailMissingToken})
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.String("path", path), zap.Error(err))
				return c.JSON(http.StatusUnauthorized, domain.ErrorResponse{Detail: detailInvalidToken})
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// claimsFrom returns the verified claims, nil when auth is disabled
func claimsFrom(c echo.Context) *auth.JWTClaims {
	claims, _ := c.Get(claimsKey).(*auth.JWTClaims)
	return claims
}
