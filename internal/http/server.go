// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	authHTTP "github.com/allisson/identity/internal/auth/http"
	authUseCase "github.com/allisson/identity/internal/auth/usecase"
	"github.com/allisson/identity/internal/config"
	"github.com/allisson/identity/internal/metrics"
)

// readinessTimeout bounds the database ping of the readiness check.
const readinessTimeout = 2 * time.Second

// Server represents the HTTP server
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server. Call SetupRouter before Start.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// SetupRouter configures the Gin router with all routes and middleware.
// ctx bounds the lifetime of the rate limiter cleanup goroutines.
//
// Public auth endpoints are throttled per client IP, authenticated ones per
// token subject. Route groups are authorized by permission with
// authHTTP.RequirePermission; authHTTP.RequireRole is the role-name
// counterpart for routes that must be limited to a role rather than a grant.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	sessionUseCase authUseCase.SessionUseCase,
	sessionHandler *authHTTP.SessionHandler,
	passwordHandler *authHTTP.PasswordHandler,
	roleHandler *authHTTP.RoleHandler,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := newCORSMiddleware(cfg, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	// Authenticated endpoints are throttled per token subject, after the token
	// has been verified.
	authenticated := []gin.HandlerFunc{authHTTP.AuthenticationMiddleware(sessionUseCase, s.logger)}
	if cfg.RateLimitEnabled {
		authenticated = append(authenticated, authHTTP.RateLimitMiddleware(
			ctx,
			cfg.RateLimitRequestsPerSec,
			cfg.RateLimitBurst,
			s.logger,
		))
	}

	// Unauthenticated endpoints are throttled per client IP.
	public := []gin.HandlerFunc{}
	if cfg.RateLimitAuthEnabled {
		public = append(public, authHTTP.IPRateLimitMiddleware(
			ctx,
			cfg.RateLimitAuthRequestsPerSec,
			cfg.RateLimitAuthBurst,
			s.logger,
		))
	}

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	{
		open := auth.Group("", public...)
		open.POST("/register", sessionHandler.RegisterHandler)
		open.POST("/login", sessionHandler.LoginHandler)
		open.POST("/verify-2fa", sessionHandler.VerifyTwoFactorHandler)
		open.POST("/refresh-token", sessionHandler.RefreshTokenHandler)
		open.GET("/check-email", sessionHandler.CheckEmailHandler)
		open.POST("/password/forgot", passwordHandler.ForgotPasswordHandler)
		open.POST("/password/reset", passwordHandler.ResetPasswordHandler)

		protected := auth.Group("", authenticated...)
		protected.POST("/logout", sessionHandler.LogoutHandler)
		protected.GET("/me", sessionHandler.MeHandler)
		protected.POST("/password/change", passwordHandler.ChangePasswordHandler)
	}

	roles := v1.Group("/roles", authenticated...)
	roles.Use(authHTTP.RequirePermission(authDomain.PermissionRolesWrite, s.logger))
	{
		roles.POST("", roleHandler.CreateHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// healthHandler reports liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the credential store is reachable.
func (s *Server) readinessHandler(c *gin.Context) {
	database := "ok"
	if s.db == nil {
		database = "error"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.Any("error", err))
			database = "error"
		}
	}

	if database != "ok" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"database": database},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"database": database},
	})
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router is not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
