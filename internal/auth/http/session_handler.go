package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/identity/internal/auth/http/dto"
	authUseCase "github.com/allisson/identity/internal/auth/usecase"
	apperrors "github.com/allisson/identity/internal/errors"
	"github.com/allisson/identity/internal/httputil"
	customValidation "github.com/allisson/identity/internal/validation"
)

// SessionHandler handles HTTP requests for registration, the two-step login,
// token refresh, logout and the profile of the authenticated user.
type SessionHandler struct {
	sessionUseCase    authUseCase.SessionUseCase
	passwordMinLength int
	logger            *slog.Logger
}

// NewSessionHandler creates a new session handler with required dependencies.
func NewSessionHandler(
	sessionUseCase authUseCase.SessionUseCase,
	passwordMinLength int,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessionUseCase:    sessionUseCase,
		passwordMinLength: passwordMinLength,
		logger:            logger,
	}
}

// RegisterHandler creates a user account.
// POST /v1/auth/register - No authentication required.
// Returns 201 Created with the user profile.
func (h *SessionHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(h.passwordMinLength); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	user, err := h.sessionUseCase.Register(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapUserToResponse(user))
}

// LoginHandler checks credentials and emails a challenge code.
// POST /v1/auth/login - No authentication required.
// Returns 200 OK without tokens; they are issued by VerifyTwoFactorHandler.
func (h *SessionHandler) LoginHandler(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.sessionUseCase.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Message:           "A verification code was sent to your email",
		TwoFactorRequired: true,
	})
}

// VerifyTwoFactorHandler redeems the emailed code and issues the token pair.
// POST /v1/auth/verify-2fa - No authentication required.
// Returns 200 OK with access and refresh tokens.
func (h *SessionHandler) VerifyTwoFactorHandler(c *gin.Context) {
	var req dto.VerifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	tokens, err := h.sessionUseCase.VerifyTwoFactor(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapIssuedTokensToResponse(tokens))
}

// RefreshTokenHandler exchanges a live refresh token for a new access token.
// POST /v1/auth/refresh-token - No authentication required.
// Returns 200 OK with the new access token.
func (h *SessionHandler) RefreshTokenHandler(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	accessToken, expiresAt, err := h.sessionUseCase.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.AccessTokenResponse{
		AccessToken: accessToken,
		TokenType:   dto.TokenTypeBearer,
		ExpiresAt:   expiresAt,
	})
}

// LogoutHandler ends the session of the presented token pair.
// POST /v1/auth/logout - Requires authentication.
// Returns 200 OK. The access token is denylisted by the call, so repeating it
// with the same token is rejected with 401 by the authentication middleware.
func (h *SessionHandler) LogoutHandler(c *gin.Context) {
	accessToken, ok := GetAccessToken(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.sessionUseCase.Logout(c.Request.Context(), req.RefreshToken, accessToken); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Logged out successfully"})
}

// MeHandler returns the profile of the authenticated user.
// GET /v1/auth/me - Requires authentication.
func (h *SessionHandler) MeHandler(c *gin.Context) {
	payload, ok := GetPayload(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	user, err := h.sessionUseCase.GetProfile(c.Request.Context(), payload.Subject)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapUserToResponse(user))
}

// CheckEmailHandler reports whether an email is registered.
// GET /v1/auth/check-email?email= - No authentication required; rate limited per IP.
func (h *SessionHandler) CheckEmailHandler(c *gin.Context) {
	email := c.Query("email")
	if err := dto.ValidateEmailQuery(email); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	exists, err := h.sessionUseCase.CheckEmail(c.Request.Context(), email)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CheckEmailResponse{Exists: exists})
}
