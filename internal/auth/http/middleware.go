package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	authUseCase "github.com/allisson/identity/internal/auth/usecase"
	apperrors "github.com/allisson/identity/internal/errors"
	"github.com/allisson/identity/internal/httputil"
)

// AuthenticationMiddleware provides authentication via Bearer token in the Authorization header.
//
// The middleware:
// 1. Extracts the Bearer token from the Authorization header (case-insensitive)
// 2. Verifies signature, expiry and the denylist via SessionUseCase.Authenticate()
// 3. Stores the verified claims and the raw token in the request context
//
// Every failure is answered with 401 Unauthorized, except store failures which map
// to 500 Internal Server Error.
//
// Usage:
//
//	router.Use(AuthenticationMiddleware(sessionUseCase, logger))
//	router.GET("/me", func(c *gin.Context) {
//	    payload, _ := GetPayload(c.Request.Context())
//	    // payload.Subject identifies the user
//	})
func AuthenticationMiddleware(
	sessionUseCase authUseCase.SessionUseCase,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug("authentication failed: missing authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		// Parse Bearer token (case-insensitive)
		const bearerPrefix = "bearer "
		if len(authHeader) < len(bearerPrefix) ||
			!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			logger.Debug("authentication failed: malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		accessToken := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if accessToken == "" {
			logger.Debug("authentication failed: empty bearer token")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		payload, err := sessionUseCase.Authenticate(c.Request.Context(), accessToken)
		if err != nil {
			logger.Debug("authentication failed", slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		ctx := WithPayload(c.Request.Context(), payload)
		ctx = WithAccessToken(ctx, accessToken)
		c.Request = c.Request.WithContext(ctx)

		logger.Debug("authentication successful", slog.String("subject", payload.Subject.String()))

		c.Next()
	}
}

// RequireRole rejects authenticated requests whose token does not carry the role.
//
// MUST be used after AuthenticationMiddleware.
//
// Error handling:
//   - No payload in context → 401 Unauthorized
//   - Role missing from the token → 403 Forbidden
func RequireRole(role string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, ok := GetPayload(c.Request.Context())
		if !ok || payload == nil {
			logger.Debug("authorization failed: no authenticated subject in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if !payload.HasRole(role) {
			logger.Debug("authorization failed: missing role",
				slog.String("subject", payload.Subject.String()),
				slog.String("role", role))
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequirePermission rejects authenticated requests whose token does not carry
// the permission. MUST be used after AuthenticationMiddleware.
func RequirePermission(permission string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, ok := GetPayload(c.Request.Context())
		if !ok || payload == nil {
			logger.Debug("authorization failed: no authenticated subject in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if !payload.HasPermission(permission) {
			logger.Debug("authorization failed: missing permission",
				slog.String("subject", payload.Subject.String()),
				slog.String("permission", permission))
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}
