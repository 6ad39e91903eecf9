// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	customValidation "github.com/allisson/identity/internal/validation"
)

// BirthDateLayout is the accepted format of RegisterRequest.BirthDate.
const BirthDateLayout = "2006-01-02"

// RegisterRequest contains the parameters for creating a user account.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"` //nolint:gosec // request field
	Name        string `json:"name"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Gender      string `json:"gender"`
	BirthDate   string `json:"birth_date"`
	AssetUserID string `json:"asset_user_id"`
}

// Validate checks if the register request is valid.
func (r *RegisterRequest) Validate(minPasswordLength int) error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email,
			validation.Required,
			customValidation.NoWhitespace,
			customValidation.Email,
			validation.Length(1, 255),
		),
		validation.Field(&r.Password,
			validation.Required,
			customValidation.PasswordLength{MinLength: minPasswordLength},
			validation.Length(0, 128),
		),
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Role, validation.Length(0, 100)),
		validation.Field(&r.DisplayName, validation.Length(0, 255)),
		validation.Field(&r.AvatarURL, customValidation.HTTPURL, validation.Length(0, 2048)),
		validation.Field(&r.Gender, validation.Length(0, 50)),
		validation.Field(&r.BirthDate, validation.Date(BirthDateLayout)),
		validation.Field(&r.AssetUserID, validation.Length(0, 255)),
	)
}

// ToInput converts the request into the use case input. Call Validate first.
func (r *RegisterRequest) ToInput() *authDomain.RegisterInput {
	input := &authDomain.RegisterInput{
		Email:       r.Email,
		Password:    r.Password,
		Name:        strings.TrimSpace(r.Name),
		Role:        strings.TrimSpace(r.Role),
		DisplayName: r.DisplayName,
		AvatarURL:   r.AvatarURL,
		Gender:      r.Gender,
		AssetUserID: r.AssetUserID,
	}
	if r.BirthDate != "" {
		if birthDate, err := time.Parse(BirthDateLayout, r.BirthDate); err == nil {
			input.BirthDate = &birthDate
		}
	}
	return input
}

// LoginRequest contains the credentials of the first login step.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field
}

// Validate checks if the login request is valid.
func (r *LoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email,
			validation.Required,
			customValidation.Email,
		),
		validation.Field(&r.Password,
			validation.Required,
		),
	)
}

// VerifyTwoFactorRequest contains the emailed code of the second login step.
type VerifyTwoFactorRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Validate checks if the verification request is valid.
func (r *VerifyTwoFactorRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email,
			validation.Required,
			customValidation.Email,
		),
		validation.Field(&r.Code,
			validation.Required,
			validation.Length(authDomain.ChallengeCodeLength, authDomain.ChallengeCodeLength),
			customValidation.Digits,
		),
	)
}

// RefreshTokenRequest contains the refresh token to exchange.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"` //nolint:gosec // request field
}

// Validate checks if the refresh request is valid.
func (r *RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RefreshToken,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// LogoutRequest contains the refresh token of the session to end. The access
// token is taken from the Authorization header.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"` //nolint:gosec // request field
}

// Validate checks if the logout request is valid.
func (r *LogoutRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RefreshToken,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// ForgotPasswordRequest contains the email a reset link is requested for.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate checks if the forgot password request is valid.
func (r *ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email,
			validation.Required,
			customValidation.Email,
		),
	)
}

// ResetPasswordRequest redeems a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"` //nolint:gosec // request field
}

// Validate checks if the reset password request is valid.
func (r *ResetPasswordRequest) Validate(minPasswordLength int) error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.NewPassword,
			validation.Required,
			customValidation.PasswordLength{MinLength: minPasswordLength},
			validation.Length(0, 128),
		),
	)
}

// ChangePasswordRequest replaces the password of the authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"` //nolint:gosec // request field
	NewPassword     string `json:"new_password"`     //nolint:gosec // request field
}

// Validate checks if the change password request is valid.
func (r *ChangePasswordRequest) Validate(minPasswordLength int) error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CurrentPassword,
			validation.Required,
		),
		validation.Field(&r.NewPassword,
			validation.Required,
			customValidation.PasswordLength{MinLength: minPasswordLength},
			validation.Length(0, 128),
		),
	)
}

// ValidateEmailQuery checks the email query parameter of the check-email endpoint.
func ValidateEmailQuery(email string) error {
	return validation.Validate(email,
		validation.Required.Error("email query parameter is required"),
		customValidation.Email,
	)
}

// CreateRoleRequest contains the parameters for creating a role.
type CreateRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// Validate checks if the create role request is valid.
func (r *CreateRoleRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 100),
		),
		validation.Field(&r.Description, validation.Length(0, 255)),
		validation.Field(&r.Permissions,
			validation.Each(customValidation.NotBlank, validation.Length(1, 100)),
		),
	)
}
