// Package http provides HTTP handlers and middleware for the identity endpoints.
package http

import (
	"context"

	authDomain "github.com/allisson/identity/internal/auth/domain"
)

// payloadKey is a context key type for storing verified token claims.
type payloadKey struct{}

// accessTokenKey is a context key type for storing the raw bearer token.
type accessTokenKey struct{}

// WithPayload stores the verified access token claims in the context.
// This is typically called by the authentication middleware after successful token validation.
func WithPayload(ctx context.Context, payload *authDomain.TokenPayload) context.Context {
	return context.WithValue(ctx, payloadKey{}, payload)
}

// GetPayload retrieves the verified access token claims from the context.
// Returns (payload, true) if present, or (nil, false) if no payload was set.
func GetPayload(ctx context.Context) (*authDomain.TokenPayload, bool) {
	payload, ok := ctx.Value(payloadKey{}).(*authDomain.TokenPayload)
	return payload, ok
}

// WithAccessToken stores the raw bearer token in the context so logout and
// password change can revoke it.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// GetAccessToken retrieves the raw bearer token from the context.
func GetAccessToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey{}).(string)
	return token, ok && token != ""
}
