package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	authService "github.com/allisson/identity/internal/auth/service"
	"github.com/allisson/identity/internal/config"
	"github.com/allisson/identity/internal/database"
	"github.com/allisson/identity/internal/metrics"
)

// revocationUseCase implements RevocationUseCase on top of the refresh token
// table, the revoked token table and an optional cache.
type revocationUseCase struct {
	config       *config.Config
	txManager    database.TxManager
	userRepo     UserRepository
	refreshRepo  RefreshTokenRepository
	revokedRepo  RevokedTokenRepository
	cache        RevocationCache
	tokenCodec   authService.TokenCodec
	tokenService authService.TokenService
	metrics      metrics.BusinessMetrics
	logger       *slog.Logger
	now          func() time.Time
}

// RevokeAccessToken denylists the access token until its own expiry.
func (r *revocationUseCase) RevokeAccessToken(ctx context.Context, accessToken string) error {
	entry := r.revokedEntry(accessToken)
	if err := r.revokedRepo.Create(ctx, entry); err != nil {
		return err
	}
	r.markCached(ctx, entry)
	return nil
}

// IsRevoked checks the cache first; a miss or a cache failure falls through to
// the database.
func (r *revocationUseCase) IsRevoked(ctx context.Context, accessToken string) (bool, error) {
	tokenHash := r.tokenService.HashToken(accessToken)

	hit, err := r.cache.IsRevoked(ctx, tokenHash)
	switch {
	case err != nil:
		r.metrics.RecordRevocationLookup(ctx, metrics.CacheError)
		r.logger.Warn("revocation cache lookup failed", slog.Any("error", err))
	case hit:
		r.metrics.RecordRevocationLookup(ctx, metrics.CacheHit)
		return true, nil
	default:
		r.metrics.RecordRevocationLookup(ctx, metrics.CacheMiss)
	}

	return r.revokedRepo.ExistsByTokenHash(ctx, tokenHash)
}

// IssueRefreshToken signs a refresh token for the user and makes it the only
// live one.
//
// The user row lock serializes concurrent logins of the same user, so the
// delete-all and insert pairs of two logins never interleave and exactly one
// refresh token survives.
func (r *revocationUseCase) IssueRefreshToken(
	ctx context.Context,
	user *authDomain.User,
) (string, time.Time, error) {
	token, expiresAt, err := r.tokenCodec.Sign(user.TokenPayload(), authDomain.RefreshToken)
	if err != nil {
		return "", time.Time{}, err
	}

	record := &authDomain.RefreshTokenRecord{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: r.tokenService.HashToken(token),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
	}

	err = r.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := r.userRepo.Lock(ctx, user.ID); err != nil {
			return err
		}
		if err := r.refreshRepo.DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}
		return r.refreshRepo.Create(ctx, record)
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// RotateOnRefresh signs a new access token for a refresh token that verifies
// and still has its server-side record. Roles and permissions are reloaded so
// the new access token reflects the current assignments.
func (r *revocationUseCase) RotateOnRefresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	payload, err := r.tokenCodec.Verify(refreshToken, authDomain.RefreshToken)
	if err != nil {
		r.logger.Debug("refresh token rejected", slog.Any("error", err))
		return "", time.Time{}, authDomain.ErrInvalidRefreshToken
	}

	record, err := r.refreshRepo.GetByTokenHash(ctx, r.tokenService.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, authDomain.ErrRefreshTokenNotFound) {
			return "", time.Time{}, authDomain.ErrInvalidRefreshToken
		}
		return "", time.Time{}, err
	}
	if record.IsExpired(r.now()) {
		return "", time.Time{}, authDomain.ErrInvalidRefreshToken
	}

	user, err := r.userRepo.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, authDomain.ErrUserNotFound) {
			return "", time.Time{}, authDomain.ErrInvalidRefreshToken
		}
		return "", time.Time{}, err
	}
	if user.UID != payload.Subject {
		return "", time.Time{}, authDomain.ErrInvalidRefreshToken
	}

	return r.tokenCodec.Sign(user.TokenPayload(), authDomain.AccessToken)
}

// RevokeOnLogout deletes the refresh token record and denylists the access
// token in one transaction. Unknown or already revoked tokens are not errors.
func (r *revocationUseCase) RevokeOnLogout(ctx context.Context, refreshToken, accessToken string) error {
	entry := r.revokedEntry(accessToken)

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := r.refreshRepo.DeleteByTokenHash(ctx, r.tokenService.HashToken(refreshToken)); err != nil {
			return err
		}
		return r.revokedRepo.Create(ctx, entry)
	})
	if err != nil {
		return err
	}

	r.markCached(ctx, entry)
	return nil
}

// RevokeAllSessions deletes every refresh token of the user.
func (r *revocationUseCase) RevokeAllSessions(ctx context.Context, userID int64) error {
	return r.refreshRepo.DeleteByUserID(ctx, userID)
}

// EndAllSessions runs apply, deletes every refresh token of the user and
// denylists accessToken in one transaction. The cache is written after commit,
// so a rolled back call never leaves a cached denylist entry behind.
func (r *revocationUseCase) EndAllSessions(
	ctx context.Context,
	userID int64,
	accessToken string,
	apply func(ctx context.Context) error,
) error {
	entry := r.revokedEntry(accessToken)

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		if apply != nil {
			if err := apply(ctx); err != nil {
				return err
			}
		}
		if err := r.refreshRepo.DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		return r.revokedRepo.Create(ctx, entry)
	})
	if err != nil {
		return err
	}

	r.markCached(ctx, entry)
	return nil
}

// revokedEntry builds the denylist row for an access token. The entry lives as
// long as the token would; a token that no longer decodes falls back to a full
// access token lifetime from now.
func (r *revocationUseCase) revokedEntry(accessToken string) *authDomain.RevokedToken {
	now := r.now()
	expiresAt := now.Add(r.config.JWTAccessExpiration)
	if payload, err := r.tokenCodec.Verify(accessToken, authDomain.AccessToken); err == nil {
		expiresAt = payload.ExpiresAt
	}

	return &authDomain.RevokedToken{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: r.tokenService.HashToken(accessToken),
		ExpiresAt: expiresAt,
		RevokedAt: now,
	}
}

// markCached is best effort; the database row is the source of truth.
func (r *revocationUseCase) markCached(ctx context.Context, entry *authDomain.RevokedToken) {
	ttl := entry.ExpiresAt.Sub(r.now())
	if err := r.cache.MarkRevoked(ctx, entry.TokenHash, ttl); err != nil {
		r.logger.Warn("failed to cache revoked token", slog.Any("error", err))
	}
}

// NewRevocationUseCase creates a new RevocationUseCase with the provided dependencies.
func NewRevocationUseCase(
	cfg *config.Config,
	txManager database.TxManager,
	userRepo UserRepository,
	refreshRepo RefreshTokenRepository,
	revokedRepo RevokedTokenRepository,
	cache RevocationCache,
	tokenCodec authService.TokenCodec,
	tokenService authService.TokenService,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) RevocationUseCase {
	return &revocationUseCase{
		config:       cfg,
		txManager:    txManager,
		userRepo:     userRepo,
		refreshRepo:  refreshRepo,
		revokedRepo:  revokedRepo,
		cache:        cache,
		tokenCodec:   tokenCodec,
		tokenService: tokenService,
		metrics:      businessMetrics,
		logger:       logger,
		now:          utcNow,
	}
}
