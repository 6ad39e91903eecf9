package usecase

import (
	"context"
	"log/slog"
	"time"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/config"
	apperrors "github.com/allisson/identity/internal/errors"
)

// housekeepingUseCase implements HousekeepingUseCase over every token table.
type housekeepingUseCase struct {
	config        *config.Config
	refreshRepo   RefreshTokenRepository
	revokedRepo   RevokedTokenRepository
	twoFactorRepo TwoFactorTokenRepository
	resetRepo     PasswordResetTokenRepository
	logger        *slog.Logger
	now           func() time.Time
}

// CleanupExpired prunes, or counts when dryRun is set, rows that expired more
// than days ago. Each table is pruned independently.
func (h *housekeepingUseCase) CleanupExpired(
	ctx context.Context,
	days int,
	dryRun bool,
) (*authDomain.CleanupResult, error) {
	if days < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "days must be zero or greater")
	}

	olderThan := h.now().AddDate(0, 0, -days)
	result := &authDomain.CleanupResult{}

	tables := []struct {
		name  string
		repo  ExpiredTokenRepository
		count *int64
	}{
		{"refresh_tokens", h.refreshRepo, &result.RefreshTokens},
		{"revoked_tokens", h.revokedRepo, &result.RevokedTokens},
		{"two_factor_tokens", h.twoFactorRepo, &result.TwoFactorTokens},
		{"password_reset_tokens", h.resetRepo, &result.PasswordResetTokens},
	}

	for _, table := range tables {
		var (
			n   int64
			err error
		)
		if dryRun {
			n, err = table.repo.CountExpired(ctx, olderThan)
		} else {
			n, err = table.repo.DeleteExpired(ctx, olderThan)
		}
		if err != nil {
			return nil, apperrors.Wrapf(err, "failed to clean %s", table.name)
		}
		*table.count = n
	}

	h.logger.Info("expired credentials cleaned",
		slog.Bool("dry_run", dryRun),
		slog.Int("days", days),
		slog.Int64("refresh_tokens", result.RefreshTokens),
		slog.Int64("revoked_tokens", result.RevokedTokens),
		slog.Int64("two_factor_tokens", result.TwoFactorTokens),
		slog.Int64("password_reset_tokens", result.PasswordResetTokens),
	)
	return result, nil
}

// Start runs CleanupExpired on every tick of the configured interval until ctx
// is cancelled.
func (h *housekeepingUseCase) Start(ctx context.Context) error {
	h.logger.Info("starting housekeeping worker", slog.Duration("interval", h.config.HousekeepingInterval))

	ticker := time.NewTicker(h.config.HousekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stopping housekeeping worker")
			return ctx.Err()
		case <-ticker.C:
			if _, err := h.CleanupExpired(ctx, 0, false); err != nil {
				h.logger.Error("failed to clean expired credentials", slog.Any("error", err))
			}
		}
	}
}

// NewHousekeepingUseCase creates a new HousekeepingUseCase with the provided dependencies.
func NewHousekeepingUseCase(
	cfg *config.Config,
	refreshRepo RefreshTokenRepository,
	revokedRepo RevokedTokenRepository,
	twoFactorRepo TwoFactorTokenRepository,
	resetRepo PasswordResetTokenRepository,
	logger *slog.Logger,
) HousekeepingUseCase {
	return &housekeepingUseCase{
		config:        cfg,
		refreshRepo:   refreshRepo,
		revokedRepo:   revokedRepo,
		twoFactorRepo: twoFactorRepo,
		resetRepo:     resetRepo,
		logger:        logger,
		now:           utcNow,
	}
}
