package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// TokenPayload is the claim set shared by access and refresh tokens.
type TokenPayload struct {
	Subject     uuid.UUID
	Roles       []string
	Permissions []string
	ExpiresAt   time.Time
}

// HasRole reports whether the payload grants the named role.
func (p *TokenPayload) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// HasPermission reports whether the payload grants the named permission.
func (p *TokenPayload) HasPermission(permission string) bool {
	return slices.Contains(p.Permissions, permission)
}

// RefreshTokenRecord is the server-side record of the single live refresh token of a user.
// Only the SHA-256 hash of the token value is stored.
type RefreshTokenRecord struct {
	ID        uuid.UUID
	TokenHash string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the stored absolute expiry has passed.
func (t *RefreshTokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RevokedToken is a denylist entry for an access token invalidated before its expiry.
// ExpiresAt is the access token's own expiry and is used only for pruning.
type RevokedToken struct {
	ID        uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt time.Time
}

// TwoFactorToken is the pending login challenge of a user. Attempts counts the
// wrong codes submitted against it.
type TwoFactorToken struct {
	ID        uuid.UUID
	UserID    int64
	Code      string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the challenge can no longer be redeemed.
func (t *TwoFactorToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// PasswordResetToken is a single-use reset credential keyed by email.
type PasswordResetToken struct {
	ID        uuid.UUID
	Email     string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the reset token can no longer be redeemed.
func (t *PasswordResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IssuedTokens is the result of a completed login.
type IssuedTokens struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// CleanupResult reports how many expired rows a housekeeping run removed
// (or would remove, on a dry run).
type CleanupResult struct {
	RefreshTokens       int64
	RevokedTokens       int64
	TwoFactorTokens     int64
	PasswordResetTokens int64
}

// Total returns the sum of all counters.
func (r CleanupResult) Total() int64 {
	return r.RefreshTokens + r.RevokedTokens + r.TwoFactorTokens + r.PasswordResetTokens
}
