package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	authService "github.com/allisson/identity/internal/auth/service"
	"github.com/allisson/identity/internal/config"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
	"github.com/allisson/identity/internal/mailer"
)

// passwordResetUseCase implements PasswordResetUseCase.
type passwordResetUseCase struct {
	config          *config.Config
	txManager       database.TxManager
	userRepo        UserRepository
	resetRepo       PasswordResetTokenRepository
	revocation      RevocationUseCase
	passwordService authService.PasswordService
	tokenService    authService.TokenService
	mailer          Mailer
	logger          *slog.Logger
	now             func() time.Time
}

// RequestReset emails a single-use reset link to a registered email.
//
// Unknown emails return nil without doing anything. For a known email, earlier
// reset tokens are deleted, the new token hash is stored, and the link is sent
// in one transaction, so an undelivered token never becomes redeemable.
func (p *passwordResetUseCase) RequestReset(ctx context.Context, email string) error {
	user, err := p.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, authDomain.ErrUserNotFound) {
			p.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}

	plainToken, tokenHash, err := p.tokenService.GenerateResetToken()
	if err != nil {
		return err
	}

	link, err := resetLink(p.config.PasswordResetURL, plainToken)
	if err != nil {
		return err
	}

	msg, err := mailer.PasswordResetMessage(user.Email, link, p.config.PasswordResetExpiration)
	if err != nil {
		return err
	}

	now := p.now()
	record := &authDomain.PasswordResetToken{
		ID:        uuid.Must(uuid.NewV7()),
		Email:     user.Email,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(p.config.PasswordResetExpiration),
		CreatedAt: now,
	}

	err = p.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := p.resetRepo.DeleteByEmail(ctx, user.Email); err != nil {
			return err
		}
		if err := p.resetRepo.Create(ctx, record); err != nil {
			return err
		}
		return deliver(ctx, p.mailer, p.config.EmailSendTimeout, msg)
	})
	if err != nil {
		return err
	}

	p.logger.Info("password reset issued", slog.Int64("user_id", user.ID))
	return nil
}

// Redeem sets newPassword for the owner of token, consumes the token, and ends
// every session of the user.
func (p *passwordResetUseCase) Redeem(ctx context.Context, token, newPassword string) error {
	if err := checkPasswordLength(p.config, newPassword); err != nil {
		return err
	}

	record, err := p.resetRepo.GetByTokenHash(ctx, p.tokenService.HashToken(token))
	if err != nil {
		if errors.Is(err, authDomain.ErrPasswordResetTokenNotFound) {
			return authDomain.ErrInvalidOrExpiredResetToken
		}
		return err
	}

	if record.IsExpired(p.now()) {
		if _, err := p.resetRepo.Delete(ctx, record.ID); err != nil {
			return err
		}
		return authDomain.ErrInvalidOrExpiredResetToken
	}

	user, err := p.userRepo.GetByEmail(ctx, record.Email)
	if err != nil {
		if errors.Is(err, authDomain.ErrUserNotFound) {
			return authDomain.ErrInvalidOrExpiredResetToken
		}
		return err
	}

	digest, err := p.passwordService.Hash(newPassword)
	if err != nil {
		return err
	}

	err = p.txManager.WithTx(ctx, func(ctx context.Context) error {
		deleted, err := p.resetRepo.Delete(ctx, record.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return authDomain.ErrInvalidOrExpiredResetToken
		}
		if err := p.userRepo.UpdatePassword(ctx, user.ID, digest, p.now()); err != nil {
			return err
		}
		return p.revocation.RevokeAllSessions(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	p.logger.Info("password reset completed", slog.Int64("user_id", user.ID))
	return nil
}

// resetLink appends the token as the "token" query parameter of base.
func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", apperrors.Wrap(err, "invalid password reset url")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func checkPasswordLength(cfg *config.Config, password string) error {
	if utf8.RuneCountInString(password) < cfg.PasswordMinLength {
		return authDomain.ErrPasswordTooShort
	}
	return nil
}

// NewPasswordResetUseCase creates a new PasswordResetUseCase with the provided dependencies.
func NewPasswordResetUseCase(
	cfg *config.Config,
	txManager database.TxManager,
	userRepo UserRepository,
	resetRepo PasswordResetTokenRepository,
	revocation RevocationUseCase,
	passwordService authService.PasswordService,
	tokenService authService.TokenService,
	mailer Mailer,
	logger *slog.Logger,
) PasswordResetUseCase {
	return &passwordResetUseCase{
		config:          cfg,
		txManager:       txManager,
		userRepo:        userRepo,
		resetRepo:       resetRepo,
		revocation:      revocation,
		passwordService: passwordService,
		tokenService:    tokenService,
		mailer:          mailer,
		logger:          logger,
		now:             utcNow,
	}
}
