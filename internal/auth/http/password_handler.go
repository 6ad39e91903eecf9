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

// forgotPasswordMessage is returned whether or not the email is registered.
const forgotPasswordMessage = "If the email is registered, a password reset link was sent"

// PasswordHandler handles HTTP requests for password reset and password change.
type PasswordHandler struct {
	sessionUseCase    authUseCase.SessionUseCase
	passwordMinLength int
	logger            *slog.Logger
}

// NewPasswordHandler creates a new password handler with required dependencies.
func NewPasswordHandler(
	sessionUseCase authUseCase.SessionUseCase,
	passwordMinLength int,
	logger *slog.Logger,
) *PasswordHandler {
	return &PasswordHandler{
		sessionUseCase:    sessionUseCase,
		passwordMinLength: passwordMinLength,
		logger:            logger,
	}
}

// ForgotPasswordHandler emails a reset link when the email is registered.
// POST /v1/auth/password/forgot - No authentication required; rate limited per IP.
// Returns 202 Accepted with the same body for known and unknown emails.
func (h *PasswordHandler) ForgotPasswordHandler(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.sessionUseCase.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.MessageResponse{Message: forgotPasswordMessage})
}

// ResetPasswordHandler redeems a reset token.
// POST /v1/auth/password/reset - No authentication required.
// Returns 200 OK. Every session of the user is ended.
func (h *PasswordHandler) ResetPasswordHandler(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(h.passwordMinLength); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.sessionUseCase.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Password updated successfully"})
}

// ChangePasswordHandler replaces the password of the authenticated user.
// POST /v1/auth/password/change - Requires authentication.
// Returns 200 OK. Every session of the user, including the calling one, is ended.
func (h *PasswordHandler) ChangePasswordHandler(c *gin.Context) {
	payload, ok := GetPayload(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}
	accessToken, ok := GetAccessToken(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(h.passwordMinLength); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	err := h.sessionUseCase.ChangePassword(
		c.Request.Context(),
		payload.Subject,
		accessToken,
		req.CurrentPassword,
		req.NewPassword,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Password changed successfully"})
}
