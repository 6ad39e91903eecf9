package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/allisson/identity/internal/auth/domain"
	apperrors "github.com/allisson/identity/internal/errors"
)

// JWTConfig configures the HS256 token codec.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Now overrides the clock, mainly for tests. Defaults to time.Now.
	Now func() time.Time
}

// tokenClaims is the JWT body of both token families.
type tokenClaims struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Kind        string   `json:"kind"`
	jwt.RegisteredClaims
}

type jwtService struct {
	keys   map[domain.TokenKind][]byte
	ttls   map[domain.TokenKind]time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTService creates a TokenCodec signing with HS256. The two secrets must be
// set and distinct.
func NewJWTService(cfg JWTConfig) (TokenCodec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("jwt signing secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh signing secrets must differ")
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = domain.DefaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = domain.DefaultRefreshTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &jwtService{
		keys: map[domain.TokenKind][]byte{
			domain.AccessToken:  cfg.AccessSecret,
			domain.RefreshToken: cfg.RefreshSecret,
		},
		ttls: map[domain.TokenKind]time.Duration{
			domain.AccessToken:  accessTTL,
			domain.RefreshToken: refreshTTL,
		},
		issuer: cfg.Issuer,
		now:    now,
	}, nil
}

// Sign issues a token of the given kind. Each token gets a random jti so two
// tokens for the same payload never collide.
func (s *jwtService) Sign(payload domain.TokenPayload, kind domain.TokenKind) (string, time.Time, error) {
	key, ok := s.keys[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token kind %q", kind)
	}

	now := s.now()
	claims := tokenClaims{
		Roles:       payload.Roles,
		Permissions: payload.Permissions,
		Kind:        string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   payload.Subject.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttls[kind])),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(err, "failed to sign token")
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify validates the signature first and the registered claims second, so an
// expired token is only reported as expired when its signature is genuine.
func (s *jwtService) Verify(token string, kind domain.TokenKind) (*domain.TokenPayload, error) {
	key, ok := s.keys[kind]
	if !ok {
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrTokenExpired
	case err != nil:
		return nil, apperrors.Wrap(domain.ErrInvalidTokenSignature, err.Error())
	}

	if claims.Kind != string(kind) {
		return nil, domain.ErrInvalidTokenSignature
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrInvalidTokenSignature
	}

	return &domain.TokenPayload{
		Subject:     subject,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
