// Package usecase implements the identity protocols: registration, the two-step
// login with an emailed challenge, refresh, logout, password reset, and the
// check run on every authenticated request.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/mailer"
)

// UserRepository defines persistence operations for users.
// Implementations must support transaction-aware operations via context propagation.
type UserRepository interface {
	// Create stores a new user with its role assignments and sets user.ID.
	// Returns ErrUserAlreadyExists when the email is taken.
	Create(ctx context.Context, user *authDomain.User) error

	// GetByID retrieves a user with roles and permissions. Returns ErrUserNotFound if not found.
	GetByID(ctx context.Context, id int64) (*authDomain.User, error)

	// GetByUID retrieves a user by external id. Returns ErrUserNotFound if not found.
	GetByUID(ctx context.Context, uid uuid.UUID) (*authDomain.User, error)

	// GetByEmail retrieves a user by exact email. Returns ErrUserNotFound if not found.
	GetByEmail(ctx context.Context, email string) (*authDomain.User, error)

	// ExistsByEmail reports whether the email is registered.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// UpdatePassword replaces the password hash of a user.
	UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error

	// Lock takes a row lock on the user for the rest of the current transaction,
	// serializing concurrent token issuance for the same user.
	Lock(ctx context.Context, id int64) error
}

// RoleRepository defines persistence operations for roles and their permissions.
type RoleRepository interface {
	// GetByName retrieves a role with its permissions. Returns ErrRoleNotFound if not found.
	GetByName(ctx context.Context, name string) (*authDomain.Role, error)

	// Create stores a role, creating missing permissions by name, and grants them.
	// Returns ErrRoleAlreadyExists when the name is taken.
	Create(ctx context.Context, role *authDomain.Role) error
}

// ExpiredTokenRepository is implemented by every token table that can be pruned.
type ExpiredTokenRepository interface {
	// DeleteExpired removes rows whose expiry is before olderThan and returns how many.
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)

	// CountExpired counts rows whose expiry is before olderThan.
	CountExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// RefreshTokenRepository defines persistence operations for refresh tokens.
type RefreshTokenRepository interface {
	ExpiredTokenRepository

	Create(ctx context.Context, token *authDomain.RefreshTokenRecord) error

	// GetByTokenHash returns ErrRefreshTokenNotFound if no row matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.RefreshTokenRecord, error)

	// DeleteByUserID removes every refresh token of the user.
	DeleteByUserID(ctx context.Context, userID int64) error

	// DeleteByTokenHash removes the matching row; a missing row is not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
}

// RevokedTokenRepository defines persistence operations for the access token denylist.
type RevokedTokenRepository interface {
	ExpiredTokenRepository

	// Create inserts a denylist entry. Inserting an already revoked hash is a no-op.
	Create(ctx context.Context, token *authDomain.RevokedToken) error

	// ExistsByTokenHash is an indexed existence check.
	ExistsByTokenHash(ctx context.Context, tokenHash string) (bool, error)
}

// TwoFactorTokenRepository defines persistence operations for login challenges.
type TwoFactorTokenRepository interface {
	ExpiredTokenRepository

	Create(ctx context.Context, token *authDomain.TwoFactorToken) error

	// GetByUserID returns ErrTwoFactorTokenNotFound if the user has no pending challenge.
	GetByUserID(ctx context.Context, userID int64) (*authDomain.TwoFactorToken, error)

	// DeleteByUserID removes any pending challenge of the user.
	DeleteByUserID(ctx context.Context, userID int64) error

	// Delete removes one challenge and reports whether this call removed it.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// RecordFailure increments the wrong-code counter of a challenge and returns
	// the new count. It returns ErrTwoFactorTokenNotFound if the challenge is gone.
	RecordFailure(ctx context.Context, id uuid.UUID) (int, error)
}

// PasswordResetTokenRepository defines persistence operations for reset tokens.
type PasswordResetTokenRepository interface {
	ExpiredTokenRepository

	Create(ctx context.Context, token *authDomain.PasswordResetToken) error

	// GetByTokenHash returns ErrPasswordResetTokenNotFound if no row matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.PasswordResetToken, error)

	// DeleteByEmail removes every reset token issued for the email.
	DeleteByEmail(ctx context.Context, email string) error

	// Delete removes one reset token and reports whether this call removed it.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// RevocationCache fronts the denylist with short-lived entries. Implementations
// may drop entries at any time; a miss always falls through to the repository.
type RevocationCache interface {
	// MarkRevoked records the hash until ttl elapses.
	MarkRevoked(ctx context.Context, tokenHash string, ttl time.Duration) error

	// IsRevoked reports a cached hit. A false result is not authoritative.
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// Mailer is the email delivery collaborator.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// TwoFactorUseCase manages the per-user login challenge:
// NoChallenge -> Pending -> Consumed | Expired.
type TwoFactorUseCase interface {
	// Issue replaces any pending challenge of the user with a fresh code and emails
	// it. A delivery failure fails the call and leaves no new challenge behind.
	Issue(ctx context.Context, user *authDomain.User) (string, error)

	// Verify consumes the pending challenge when code matches exactly. Fails with
	// ErrChallengeNotFound (absent, consumed or mismatched) or ErrChallengeExpired,
	// both of which match ErrChallengeNotFoundOrExpired.
	Verify(ctx context.Context, userID int64, code string) error
}

// RevocationUseCase tracks invalidated access tokens and enforces the single
// live refresh token per user.
type RevocationUseCase interface {
	// RevokeAccessToken adds the access token to the denylist. Idempotent.
	RevokeAccessToken(ctx context.Context, accessToken string) error

	// IsRevoked reports whether the access token is denylisted.
	IsRevoked(ctx context.Context, accessToken string) (bool, error)

	// IssueRefreshToken atomically replaces all refresh tokens of the user with a new one.
	IssueRefreshToken(ctx context.Context, user *authDomain.User) (string, time.Time, error)

	// RotateOnRefresh exchanges a live refresh token for a new access token. Any
	// failure is reported as ErrInvalidRefreshToken.
	RotateOnRefresh(ctx context.Context, refreshToken string) (string, time.Time, error)

	// RevokeOnLogout deletes the refresh token record and denylists the access
	// token in one transaction. Idempotent.
	RevokeOnLogout(ctx context.Context, refreshToken, accessToken string) error

	// RevokeAllSessions deletes every refresh token of the user.
	RevokeAllSessions(ctx context.Context, userID int64) error

	// EndAllSessions runs apply, deletes every refresh token of the user and
	// denylists accessToken in one transaction. The denylist cache is only
	// written once that transaction has committed.
	EndAllSessions(ctx context.Context, userID int64, accessToken string, apply func(ctx context.Context) error) error
}

// PasswordResetUseCase issues and redeems single-use password reset tokens.
type PasswordResetUseCase interface {
	// RequestReset emails a reset link when the email is registered. Unknown
	// emails succeed silently. A delivery failure rolls the token back.
	RequestReset(ctx context.Context, email string) error

	// Redeem sets a new password and ends every session of the user. Unknown,
	// consumed and expired tokens all fail with ErrInvalidOrExpiredResetToken.
	Redeem(ctx context.Context, token, newPassword string) error
}

// SessionUseCase sequences the credential components into the session protocols.
type SessionUseCase interface {
	// Register creates a user with the requested (or default) role and returns
	// the stored profile. Fails with ErrUserAlreadyExists or ErrRoleNotFound.
	Register(ctx context.Context, input *authDomain.RegisterInput) (*authDomain.User, error)

	// Login checks credentials and emails a challenge. No tokens are issued.
	// Unknown email and wrong password both fail with ErrInvalidCredentials.
	Login(ctx context.Context, email, password string) error

	// VerifyTwoFactor consumes the challenge and issues an access and a refresh token.
	VerifyTwoFactor(ctx context.Context, email, code string) (*authDomain.IssuedTokens, error)

	// Refresh returns a new access token for a live refresh token.
	Refresh(ctx context.Context, refreshToken string) (string, time.Time, error)

	// Logout ends the session of the given token pair. Idempotent.
	Logout(ctx context.Context, refreshToken, accessToken string) error

	// Authenticate verifies an access token and checks the denylist. Every
	// failure is reported as ErrInvalidAccessToken.
	Authenticate(ctx context.Context, accessToken string) (*authDomain.TokenPayload, error)

	// GetProfile returns the user identified by a token subject.
	GetProfile(ctx context.Context, uid uuid.UUID) (*authDomain.User, error)

	// CheckEmail reports whether the email is registered.
	CheckEmail(ctx context.Context, email string) (bool, error)

	// ChangePassword replaces the password of an authenticated user after checking
	// the current one, then ends every session including the calling one.
	ChangePassword(ctx context.Context, uid uuid.UUID, accessToken, currentPassword, newPassword string) error

	// RequestPasswordReset delegates to the password reset flow.
	RequestPasswordReset(ctx context.Context, email string) error

	// ResetPassword delegates to the password reset flow.
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// RoleUseCase manages the static role and permission reference data.
type RoleUseCase interface {
	// Create stores a role granting the named permissions.
	Create(ctx context.Context, name, description string, permissions []string) (*authDomain.Role, error)
}

// HousekeepingUseCase prunes expired credential rows.
type HousekeepingUseCase interface {
	// CleanupExpired removes rows that expired more than days ago, or only counts
	// them when dryRun is set.
	CleanupExpired(ctx context.Context, days int, dryRun bool) (*authDomain.CleanupResult, error)

	// Start runs CleanupExpired(0) on every tick until ctx is cancelled.
	Start(ctx context.Context) error
}
