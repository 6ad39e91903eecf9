package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/identity/internal/auth/http/dto"
	authUseCase "github.com/allisson/identity/internal/auth/usecase"
	"github.com/allisson/identity/internal/httputil"
	customValidation "github.com/allisson/identity/internal/validation"
)

// RoleHandler handles HTTP requests for role administration.
type RoleHandler struct {
	roleUseCase authUseCase.RoleUseCase
	logger      *slog.Logger
}

// NewRoleHandler creates a new role handler with required dependencies.
func NewRoleHandler(roleUseCase authUseCase.RoleUseCase, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{
		roleUseCase: roleUseCase,
		logger:      logger,
	}
}

// CreateHandler creates a role with its permissions.
// POST /v1/roles - Requires authentication and the admin role.
// Returns 201 Created with the stored role.
func (h *RoleHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	role, err := h.roleUseCase.Create(c.Request.Context(), req.Name, req.Description, req.Permissions)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapRoleToResponse(role))
}
