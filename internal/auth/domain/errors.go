package domain

import (
	"github.com/allisson/identity/internal/errors"
)

// Errors returned to callers of the session operations. Variants that would let a
// caller tell "unknown" from "expired" or "wrong" apart are merged on purpose.
var (
	// ErrUserAlreadyExists indicates the email is already registered.
	ErrUserAlreadyExists = errors.Wrap(errors.ErrConflict, "user already exists")

	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = errors.Wrap(errors.ErrInvalidInput, "role not found")

	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.Wrap(errors.ErrUnauthorized, "invalid credentials")

	// ErrChallengeNotFoundOrExpired covers a missing, consumed, mismatched or expired challenge.
	ErrChallengeNotFoundOrExpired = errors.Wrap(
		errors.ErrUnauthorized,
		"two-factor challenge not found or expired",
	)

	// ErrInvalidOrExpiredResetToken covers unknown, consumed and expired reset tokens.
	ErrInvalidOrExpiredResetToken = errors.Wrap(errors.ErrInvalidInput, "invalid or expired reset token")

	// ErrInvalidRefreshToken indicates a refresh token failed verification or was superseded.
	ErrInvalidRefreshToken = errors.Wrap(errors.ErrUnauthorized, "invalid refresh token")

	// ErrInvalidAccessToken indicates a bad, expired or revoked access token.
	ErrInvalidAccessToken = errors.Wrap(errors.ErrUnauthorized, "invalid access token")

	// ErrDeliveryFailed indicates the email collaborator could not send a message.
	ErrDeliveryFailed = errors.Wrap(errors.ErrUnavailable, "message delivery failed")

	// ErrPasswordTooShort indicates a password below the configured minimum length.
	ErrPasswordTooShort = errors.Wrap(errors.ErrInvalidInput, "password too short")
)

// Internal errors. Use cases translate these into the merged errors above.
var (
	// ErrChallengeNotFound indicates no pending challenge matches.
	ErrChallengeNotFound = errors.Wrap(ErrChallengeNotFoundOrExpired, "no pending challenge")

	// ErrChallengeExpired indicates the pending challenge is past its expiry.
	ErrChallengeExpired = errors.Wrap(ErrChallengeNotFoundOrExpired, "challenge expired")

	// ErrTokenExpired indicates a signed token with a valid signature but elapsed expiry.
	ErrTokenExpired = errors.Wrap(errors.ErrUnauthorized, "token expired")

	// ErrInvalidTokenSignature indicates a malformed token or one not signed with the expected key.
	ErrInvalidTokenSignature = errors.Wrap(errors.ErrUnauthorized, "invalid token signature")

	// ErrUserNotFound indicates a user lookup found no row.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrRoleAlreadyExists indicates a role with the same name exists.
	ErrRoleAlreadyExists = errors.Wrap(errors.ErrConflict, "role already exists")

	// ErrRefreshTokenNotFound indicates no stored refresh token matches the hash.
	ErrRefreshTokenNotFound = errors.Wrap(errors.ErrNotFound, "refresh token not found")

	// ErrTwoFactorTokenNotFound indicates no stored challenge exists for the user.
	ErrTwoFactorTokenNotFound = errors.Wrap(errors.ErrNotFound, "two-factor token not found")

	// ErrPasswordResetTokenNotFound indicates no stored reset token matches the hash.
	ErrPasswordResetTokenNotFound = errors.Wrap(errors.ErrNotFound, "password reset token not found")
)
