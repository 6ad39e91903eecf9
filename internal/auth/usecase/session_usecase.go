package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	authService "github.com/allisson/identity/internal/auth/service"
	"github.com/allisson/identity/internal/config"
	"github.com/allisson/identity/internal/database"
)

// timingPassword is hashed once and verified against when a login names an
// unknown email, so both failure paths cost one password verification.
const timingPassword = "identity-timing-equalizer"

// sessionUseCase implements SessionUseCase.
type sessionUseCase struct {
	config          *config.Config
	txManager       database.TxManager
	userRepo        UserRepository
	roleRepo        RoleRepository
	passwordService authService.PasswordService
	tokenCodec      authService.TokenCodec
	twoFactor       TwoFactorUseCase
	revocation      RevocationUseCase
	passwordReset   PasswordResetUseCase
	logger          *slog.Logger
	now             func() time.Time
	dummyDigest     func() (string, error)
}

// Register creates a user holding the requested role, or the configured default
// role when none is given.
func (s *sessionUseCase) Register(
	ctx context.Context,
	input *authDomain.RegisterInput,
) (*authDomain.User, error) {
	if err := checkPasswordLength(s.config, input.Password); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, authDomain.ErrUserAlreadyExists
	}

	roleName := input.Role
	if roleName == "" {
		roleName = s.config.DefaultRole
	}
	role, err := s.roleRepo.GetByName(ctx, roleName)
	if err != nil {
		return nil, err
	}

	digest, err := s.passwordService.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &authDomain.User{
		UID:          uuid.Must(uuid.NewV7()),
		Email:        input.Email,
		PasswordHash: digest,
		Name:         input.Name,
		DisplayName:  input.DisplayName,
		AvatarURL:    input.AvatarURL,
		Gender:       input.Gender,
		BirthDate:    input.BirthDate,
		AssetUserID:  input.AssetUserID,
		Roles:        []authDomain.Role{*role},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
		return s.userRepo.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.Int64("user_id", user.ID), slog.String("role", role.Name))
	return publicProfile(user), nil
}

// Login checks the password and emails a two-factor challenge.
func (s *sessionUseCase) Login(ctx context.Context, email, password string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, authDomain.ErrUserNotFound) {
			if digest, hashErr := s.dummyDigest(); hashErr == nil {
				s.passwordService.Verify(password, digest)
			}
			return authDomain.ErrInvalidCredentials
		}
		return err
	}

	if !s.passwordService.Verify(password, user.PasswordHash) {
		return authDomain.ErrInvalidCredentials
	}

	_, err = s.twoFactor.Issue(ctx, user)
	return err
}

// VerifyTwoFactor consumes the challenge and issues the session tokens.
func (s *sessionUseCase) VerifyTwoFactor(
	ctx context.Context,
	email, code string,
) (*authDomain.IssuedTokens, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, authDomain.ErrUserNotFound) {
			return nil, authDomain.ErrChallengeNotFound
		}
		return nil, err
	}

	if err := s.twoFactor.Verify(ctx, user.ID, code); err != nil {
		return nil, err
	}

	accessToken, accessExpiresAt, err := s.tokenCodec.Sign(user.TokenPayload(), authDomain.AccessToken)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshExpiresAt, err := s.revocation.IssueRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	return &authDomain.IssuedTokens{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: refreshExpiresAt,
	}, nil
}

// Refresh returns a new access token; the refresh token stays unchanged.
func (s *sessionUseCase) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	return s.revocation.RotateOnRefresh(ctx, refreshToken)
}

// Logout ends the session of the given token pair.
func (s *sessionUseCase) Logout(ctx context.Context, refreshToken, accessToken string) error {
	return s.revocation.RevokeOnLogout(ctx, refreshToken, accessToken)
}

// Authenticate verifies the access token and rejects denylisted ones.
func (s *sessionUseCase) Authenticate(ctx context.Context, accessToken string) (*authDomain.TokenPayload, error) {
	payload, err := s.tokenCodec.Verify(accessToken, authDomain.AccessToken)
	if err != nil {
		s.logger.Debug("access token rejected", slog.Any("error", err))
		return nil, authDomain.ErrInvalidAccessToken
	}

	revoked, err := s.revocation.IsRevoked(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, authDomain.ErrInvalidAccessToken
	}
	return payload, nil
}

// GetProfile loads the user named by a token subject.
func (s *sessionUseCase) GetProfile(ctx context.Context, uid uuid.UUID) (*authDomain.User, error) {
	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return publicProfile(user), nil
}

// CheckEmail reports whether the email is registered.
func (s *sessionUseCase) CheckEmail(ctx context.Context, email string) (bool, error) {
	return s.userRepo.ExistsByEmail(ctx, email)
}

// ChangePassword replaces the password after checking the current one. Every
// refresh token of the user is deleted and the calling access token is
// denylisted in the same transaction as the password update.
func (s *sessionUseCase) ChangePassword(
	ctx context.Context,
	uid uuid.UUID,
	accessToken, currentPassword, newPassword string,
) error {
	if err := checkPasswordLength(s.config, newPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, authDomain.ErrUserNotFound) {
			return authDomain.ErrInvalidAccessToken
		}
		return err
	}

	if !s.passwordService.Verify(currentPassword, user.PasswordHash) {
		return authDomain.ErrInvalidCredentials
	}

	digest, err := s.passwordService.Hash(newPassword)
	if err != nil {
		return err
	}

	err = s.revocation.EndAllSessions(ctx, user.ID, accessToken, func(ctx context.Context) error {
		return s.userRepo.UpdatePassword(ctx, user.ID, digest, s.now())
	})
	if err != nil {
		return err
	}

	s.logger.Info("password changed", slog.Int64("user_id", user.ID))
	return nil
}

// RequestPasswordReset starts the reset flow for email.
func (s *sessionUseCase) RequestPasswordReset(ctx context.Context, email string) error {
	return s.passwordReset.RequestReset(ctx, email)
}

// ResetPassword completes the reset flow.
func (s *sessionUseCase) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.passwordReset.Redeem(ctx, token, newPassword)
}

// publicProfile returns a copy of user without the password hash.
func publicProfile(user *authDomain.User) *authDomain.User {
	profile := *user
	profile.PasswordHash = ""
	return &profile
}

// NewSessionUseCase creates a new SessionUseCase with the provided dependencies.
func NewSessionUseCase(
	cfg *config.Config,
	txManager database.TxManager,
	userRepo UserRepository,
	roleRepo RoleRepository,
	passwordService authService.PasswordService,
	tokenCodec authService.TokenCodec,
	twoFactor TwoFactorUseCase,
	revocation RevocationUseCase,
	passwordReset PasswordResetUseCase,
	logger *slog.Logger,
) SessionUseCase {
	return &sessionUseCase{
		config:          cfg,
		txManager:       txManager,
		userRepo:        userRepo,
		roleRepo:        roleRepo,
		passwordService: passwordService,
		tokenCodec:      tokenCodec,
		twoFactor:       twoFactor,
		revocation:      revocation,
		passwordReset:   passwordReset,
		logger:          logger,
		now:             utcNow,
		dummyDigest: sync.OnceValues(func() (string, error) {
			return passwordService.Hash(timingPassword)
		}),
	}
}
