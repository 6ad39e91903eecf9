// Package service provides the technical building blocks of the identity core:
// password hashing, signed token encoding, random credential generation, and
// loading of KMS-wrapped signing keys.
package service

import (
	"context"
	"time"

	"github.com/allisson/identity/internal/auth/domain"
)

// PasswordService hashes and verifies user passwords.
type PasswordService interface {
	// Hash returns a salted, slow digest of the plaintext. Fails on empty input.
	Hash(plain string) (string, error)

	// Verify reports whether plain matches digest. A malformed or unknown digest
	// is a non-match, never an error.
	Verify(plain, digest string) bool
}

// TokenCodec signs and verifies access and refresh tokens.
type TokenCodec interface {
	// Sign encodes payload as a token of the given kind and returns its expiry.
	Sign(payload domain.TokenPayload, kind domain.TokenKind) (token string, expiresAt time.Time, err error)

	// Verify checks signature and expiry together. It fails with
	// domain.ErrTokenExpired when only the expiry is wrong and with
	// domain.ErrInvalidTokenSignature for everything else.
	Verify(token string, kind domain.TokenKind) (*domain.TokenPayload, error)
}

// TokenService generates random credentials and the hashes they are stored under.
type TokenService interface {
	// GenerateResetToken returns a hex encoded 32-byte random token and its SHA-256 hash.
	GenerateResetToken() (plainToken string, tokenHash string, err error)

	// GenerateChallengeCode returns a uniformly drawn code in [100000, 999999].
	GenerateChallengeCode() (string, error)

	// HashToken returns the hex SHA-256 digest used to store and look up token values.
	HashToken(plainToken string) string
}

// KeyDecrypter is the subset of *secrets.Keeper used to unwrap signing keys.
type KeyDecrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
