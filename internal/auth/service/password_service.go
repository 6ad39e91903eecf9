package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/allisson/go-pwdhash"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/allisson/identity/internal/errors"
)

const (
	// AlgorithmArgon2id hashes new passwords with Argon2id (PHC string format).
	AlgorithmArgon2id = "argon2id"

	// AlgorithmBcrypt hashes new passwords with bcrypt.
	AlgorithmBcrypt = "bcrypt"
)

var errEmptyPassword = apperrors.Wrap(apperrors.ErrInvalidInput, "password is empty")

// passwordService hashes new passwords with the configured algorithm and verifies
// digests of both families, so accounts hashed with bcrypt keep working after the
// default moves to Argon2id.
type passwordService struct {
	algorithm  string
	argon      *pwdhash.PasswordHasher
	bcryptCost int
}

// NewPasswordService creates a PasswordService. bcryptCost is only used when
// algorithm is AlgorithmBcrypt and must be within bcrypt's accepted range.
func NewPasswordService(algorithm string, bcryptCost int) (PasswordService, error) {
	argon, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return nil, fmt.Errorf("failed to create argon2id hasher: %w", err)
	}

	switch algorithm {
	case AlgorithmArgon2id:
	case AlgorithmBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
	default:
		return nil, fmt.Errorf("unsupported password hash algorithm %q", algorithm)
	}

	return &passwordService{
		algorithm:  algorithm,
		argon:      argon,
		bcryptCost: bcryptCost,
	}, nil
}

// Hash hashes plain with the configured algorithm.
func (p *passwordService) Hash(plain string) (string, error) {
	if plain == "" {
		return "", errEmptyPassword
	}

	if p.algorithm == AlgorithmBcrypt {
		digest, err := bcrypt.GenerateFromPassword([]byte(plain), p.bcryptCost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperrors.Wrap(apperrors.ErrInvalidInput, "password longer than 72 bytes")
		}
		if err != nil {
			return "", apperrors.Wrap(err, "failed to hash password")
		}
		return string(digest), nil
	}

	digest, err := p.argon.Hash([]byte(plain))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash password")
	}
	return digest, nil
}

// Verify compares plain against a digest of either supported family.
func (p *passwordService) Verify(plain, digest string) bool {
	switch {
	case isBcryptDigest(digest):
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
	case strings.HasPrefix(digest, "$argon2id$"):
		ok, err := p.argon.Verify([]byte(plain), digest)
		return err == nil && ok
	default:
		return false
	}
}

func isBcryptDigest(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
