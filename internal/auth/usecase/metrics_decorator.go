package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/metrics"
)

const metricsDomain = "auth"

func recordMetrics(ctx context.Context, m metrics.BusinessMetrics, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.RecordOperation(ctx, metricsDomain, operation, status)
	m.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// sessionUseCaseWithMetrics decorates SessionUseCase with metrics instrumentation.
type sessionUseCaseWithMetrics struct {
	next    SessionUseCase
	metrics metrics.BusinessMetrics
}

// NewSessionUseCaseWithMetrics wraps a SessionUseCase with metrics recording.
func NewSessionUseCaseWithMetrics(useCase SessionUseCase, m metrics.BusinessMetrics) SessionUseCase {
	return &sessionUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Register records metrics for user registration.
func (s *sessionUseCaseWithMetrics) Register(
	ctx context.Context,
	input *authDomain.RegisterInput,
) (*authDomain.User, error) {
	start := time.Now()
	user, err := s.next.Register(ctx, input)
	recordMetrics(ctx, s.metrics, "register", start, err)
	return user, err
}

// Login records metrics for the credential step of a login.
func (s *sessionUseCaseWithMetrics) Login(ctx context.Context, email, password string) error {
	start := time.Now()
	err := s.next.Login(ctx, email, password)
	recordMetrics(ctx, s.metrics, "login", start, err)
	return err
}

// VerifyTwoFactor records metrics for the challenge step of a login.
func (s *sessionUseCaseWithMetrics) VerifyTwoFactor(
	ctx context.Context,
	email, code string,
) (*authDomain.IssuedTokens, error) {
	start := time.Now()
	tokens, err := s.next.VerifyTwoFactor(ctx, email, code)
	recordMetrics(ctx, s.metrics, "verify_2fa", start, err)
	return tokens, err
}

// Refresh records metrics for access token refreshes.
func (s *sessionUseCaseWithMetrics) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	start := time.Now()
	token, expiresAt, err := s.next.Refresh(ctx, refreshToken)
	recordMetrics(ctx, s.metrics, "refresh", start, err)
	return token, expiresAt, err
}

// Logout records metrics for logouts.
func (s *sessionUseCaseWithMetrics) Logout(ctx context.Context, refreshToken, accessToken string) error {
	start := time.Now()
	err := s.next.Logout(ctx, refreshToken, accessToken)
	recordMetrics(ctx, s.metrics, "logout", start, err)
	return err
}

// Authenticate records metrics for access token checks.
func (s *sessionUseCaseWithMetrics) Authenticate(
	ctx context.Context,
	accessToken string,
) (*authDomain.TokenPayload, error) {
	start := time.Now()
	payload, err := s.next.Authenticate(ctx, accessToken)
	recordMetrics(ctx, s.metrics, "authenticate", start, err)
	return payload, err
}

// GetProfile records metrics for profile lookups.
func (s *sessionUseCaseWithMetrics) GetProfile(ctx context.Context, uid uuid.UUID) (*authDomain.User, error) {
	start := time.Now()
	user, err := s.next.GetProfile(ctx, uid)
	recordMetrics(ctx, s.metrics, "get_profile", start, err)
	return user, err
}

// CheckEmail records metrics for email availability checks.
func (s *sessionUseCaseWithMetrics) CheckEmail(ctx context.Context, email string) (bool, error) {
	start := time.Now()
	exists, err := s.next.CheckEmail(ctx, email)
	recordMetrics(ctx, s.metrics, "check_email", start, err)
	return exists, err
}

// ChangePassword records metrics for password changes.
func (s *sessionUseCaseWithMetrics) ChangePassword(
	ctx context.Context,
	uid uuid.UUID,
	accessToken, currentPassword, newPassword string,
) error {
	start := time.Now()
	err := s.next.ChangePassword(ctx, uid, accessToken, currentPassword, newPassword)
	recordMetrics(ctx, s.metrics, "change_password", start, err)
	return err
}

// RequestPasswordReset records metrics for reset requests.
func (s *sessionUseCaseWithMetrics) RequestPasswordReset(ctx context.Context, email string) error {
	start := time.Now()
	err := s.next.RequestPasswordReset(ctx, email)
	recordMetrics(ctx, s.metrics, "password_reset_request", start, err)
	return err
}

// ResetPassword records metrics for reset redemptions.
func (s *sessionUseCaseWithMetrics) ResetPassword(ctx context.Context, token, newPassword string) error {
	start := time.Now()
	err := s.next.ResetPassword(ctx, token, newPassword)
	recordMetrics(ctx, s.metrics, "password_reset", start, err)
	return err
}

// housekeepingUseCaseWithMetrics decorates HousekeepingUseCase with metrics instrumentation.
type housekeepingUseCaseWithMetrics struct {
	next    HousekeepingUseCase
	metrics metrics.BusinessMetrics
}

// NewHousekeepingUseCaseWithMetrics wraps a HousekeepingUseCase with metrics recording.
func NewHousekeepingUseCaseWithMetrics(useCase HousekeepingUseCase, m metrics.BusinessMetrics) HousekeepingUseCase {
	return &housekeepingUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// CleanupExpired records metrics for pruning runs.
func (h *housekeepingUseCaseWithMetrics) CleanupExpired(
	ctx context.Context,
	days int,
	dryRun bool,
) (*authDomain.CleanupResult, error) {
	start := time.Now()
	result, err := h.next.CleanupExpired(ctx, days, dryRun)
	recordMetrics(ctx, h.metrics, "cleanup_expired", start, err)
	return result, err
}

// Start delegates to the wrapped use case; worker ticks are not recorded.
func (h *housekeepingUseCaseWithMetrics) Start(ctx context.Context) error {
	return h.next.Start(ctx)
}
