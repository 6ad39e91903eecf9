package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/allisson/identity/internal/auth/domain"
	apperrors "github.com/allisson/identity/internal/errors"
)

var challengeRange = big.NewInt(900000)

// tokenService implements TokenService with crypto/rand and SHA-256.
type tokenService struct{}

// NewTokenService creates a new TokenService.
func NewTokenService() TokenService {
	return &tokenService{}
}

// GenerateResetToken creates a hex encoded token from 32 random bytes.
func (t *tokenService) GenerateResetToken() (plainToken string, tokenHash string, err error) {
	randomBytes := make([]byte, domain.ResetTokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate reset token")
	}

	plainToken = hex.EncodeToString(randomBytes)
	return plainToken, t.HashToken(plainToken), nil
}

// GenerateChallengeCode draws a six digit code without modulo bias.
func (t *tokenService) GenerateChallengeCode() (string, error) {
	n, err := rand.Int(rand.Reader, challengeRange)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to generate challenge code")
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// HashToken hashes a plain text token using SHA-256.
// Returns the hash as a hexadecimal string.
func (t *tokenService) HashToken(plainToken string) string {
	hash := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(hash[:])
}
