// Package domain defines the identity domain models: users with their roles and
// permissions, and the credential records issued to them (refresh tokens, denylisted
// access tokens, two-factor challenges and password reset tokens).
package domain

import "time"

// TokenKind distinguishes the two signed token families. Each kind is signed with
// its own key so that compromise of one key does not compromise the other.
type TokenKind string

const (
	// AccessToken is the short-lived bearer credential presented on every protected request.
	AccessToken TokenKind = "access"

	// RefreshToken is the long-lived credential exchanged for new access tokens.
	RefreshToken TokenKind = "refresh"
)

const (
	// DefaultAccessTokenTTL is the access token lifetime when none is configured.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the refresh token lifetime when none is configured.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// DefaultChallengeTTL is how long a two-factor code stays redeemable.
	DefaultChallengeTTL = 15 * time.Minute

	// DefaultPasswordResetTTL is how long a password reset token stays redeemable.
	DefaultPasswordResetTTL = 2 * time.Hour

	// ChallengeCodeLength is the number of digits of a two-factor code.
	ChallengeCodeLength = 6

	// ResetTokenBytes is the amount of randomness behind a password reset token.
	ResetTokenBytes = 32
)

// PermissionRolesWrite grants role administration.
const PermissionRolesWrite = "roles:write"
