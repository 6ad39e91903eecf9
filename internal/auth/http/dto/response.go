package dto

import (
	"time"

	authDomain "github.com/allisson/identity/internal/auth/domain"
)

// TokenTypeBearer is the token_type of every issued access token.
const TokenTypeBearer = "Bearer"

// UserResponse represents a user profile in API responses (excludes the password hash).
type UserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	BirthDate   string    `json:"birth_date,omitempty"`
	AssetUserID string    `json:"asset_user_id,omitempty"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MapUserToResponse converts a domain user to an API response.
func MapUserToResponse(user *authDomain.User) UserResponse {
	response := UserResponse{
		ID:          user.UID.String(),
		Email:       user.Email,
		Name:        user.Name,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Gender:      user.Gender,
		AssetUserID: user.AssetUserID,
		Roles:       user.RoleNames(),
		Permissions: user.PermissionNames(),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
	if user.BirthDate != nil {
		response.BirthDate = user.BirthDate.Format(BirthDateLayout)
	}
	return response
}

// LoginResponse tells the caller a challenge code was emailed.
type LoginResponse struct {
	Message           string `json:"message"`
	TwoFactorRequired bool   `json:"two_factor_required"`
}

// TokenPairResponse contains the tokens issued by a completed login.
// SECURITY: Both tokens are bearer credentials and must be stored securely.
type TokenPairResponse struct {
	AccessToken           string    `json:"access_token"`  //nolint:gosec // issued credential
	RefreshToken          string    `json:"refresh_token"` //nolint:gosec // issued credential
	TokenType             string    `json:"token_type"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// MapIssuedTokensToResponse converts issued tokens to an API response.
func MapIssuedTokensToResponse(tokens *authDomain.IssuedTokens) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:           tokens.AccessToken,
		RefreshToken:          tokens.RefreshToken,
		TokenType:             TokenTypeBearer,
		AccessTokenExpiresAt:  tokens.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: tokens.RefreshTokenExpiresAt,
	}
}

// AccessTokenResponse contains an access token minted from a refresh token.
type AccessTokenResponse struct {
	AccessToken string    `json:"access_token"` //nolint:gosec // issued credential
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CheckEmailResponse reports whether an email is registered.
type CheckEmailResponse struct {
	Exists bool `json:"exists"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// RoleResponse represents a role in API responses.
type RoleResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
}

// MapRoleToResponse converts a domain role to an API response.
func MapRoleToResponse(role *authDomain.Role) RoleResponse {
	permissions := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		permissions = append(permissions, p.Name)
	}
	return RoleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: permissions,
	}
}
