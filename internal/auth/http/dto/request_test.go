package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegisterRequest() RegisterRequest {
	return RegisterRequest{
		Email:    "alice@example.com",
		Password: "secret1",
		Name:     "Alice",
		Role:     "administrator",
	}
}

func TestRegisterRequest_Validate(t *testing.T) {
	t.Run("Success_ValidRequest", func(t *testing.T) {
		req := validRegisterRequest()
		assert.NoError(t, req.Validate(6))
	})

	t.Run("Success_OptionalProfileFields", func(t *testing.T) {
		req := validRegisterRequest()
		req.AvatarURL = "https://cdn.example.com/alice.png"
		req.BirthDate = "1990-05-17"
		req.DisplayName = "alice"
		assert.NoError(t, req.Validate(6))
	})

	tests := []struct {
		name   string
		mutate func(*RegisterRequest)
		field  string
	}{
		{"Error_MissingEmail", func(r *RegisterRequest) { r.Email = "" }, "email"},
		{"Error_InvalidEmail", func(r *RegisterRequest) { r.Email = "alice" }, "email"},
		{"Error_EmailWithWhitespace", func(r *RegisterRequest) { r.Email = " alice@example.com" }, "email"},
		{"Error_MissingPassword", func(r *RegisterRequest) { r.Password = "" }, "password"},
		{"Error_ShortPassword", func(r *RegisterRequest) { r.Password = "12345" }, "password"},
		{"Error_LongPassword", func(r *RegisterRequest) { r.Password = strings.Repeat("a", 129) }, "password"},
		{"Error_BlankName", func(r *RegisterRequest) { r.Name = "   " }, "name"},
		{"Error_InvalidAvatarURL", func(r *RegisterRequest) { r.AvatarURL = "not a url" }, "avatar_url"},
		{"Error_InvalidBirthDate", func(r *RegisterRequest) { r.BirthDate = "17/05/1990" }, "birth_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegisterRequest()
			tt.mutate(&req)

			err := req.Validate(6)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestRegisterRequest_ToInput(t *testing.T) {
	req := validRegisterRequest()
	req.Name = "  Alice  "
	req.Role = " viewer "
	req.BirthDate = "1990-05-17"

	input := req.ToInput()

	assert.Equal(t, "alice@example.com", input.Email)
	assert.Equal(t, "secret1", input.Password)
	assert.Equal(t, "Alice", input.Name)
	assert.Equal(t, "viewer", input.Role)
	require.NotNil(t, input.BirthDate)
	assert.Equal(t, 1990, input.BirthDate.Year())

	req.BirthDate = ""
	assert.Nil(t, req.ToInput().BirthDate)
}

func TestLoginRequest_Validate(t *testing.T) {
	t.Run("Success_ValidRequest", func(t *testing.T) {
		req := LoginRequest{Email: "alice@example.com", Password: "secret1"}
		assert.NoError(t, req.Validate())
	})

	t.Run("Success_ShortPasswordAccepted", func(t *testing.T) {
		req := LoginRequest{Email: "alice@example.com", Password: "x"}
		assert.NoError(t, req.Validate())
	})

	t.Run("Error_MissingPassword", func(t *testing.T) {
		req := LoginRequest{Email: "alice@example.com"}
		assert.Error(t, req.Validate())
	})

	t.Run("Error_InvalidEmail", func(t *testing.T) {
		req := LoginRequest{Email: "alice@", Password: "secret1"}
		assert.Error(t, req.Validate())
	})
}

func TestVerifyTwoFactorRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		shouldErr bool
	}{
		{"Success_SixDigits", "123456", false},
		{"Error_Empty", "", true},
		{"Error_FiveDigits", "12345", true},
		{"Error_SevenDigits", "1234567", true},
		{"Error_Letters", "12a456", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := VerifyTwoFactorRequest{Email: "alice@example.com", Code: tt.code}
			if tt.shouldErr {
				assert.Error(t, req.Validate())
			} else {
				assert.NoError(t, req.Validate())
			}
		})
	}
}

func TestRefreshAndLogoutRequest_Validate(t *testing.T) {
	assert.NoError(t, (&RefreshTokenRequest{RefreshToken: "token"}).Validate())
	assert.Error(t, (&RefreshTokenRequest{RefreshToken: "  "}).Validate())
	assert.NoError(t, (&LogoutRequest{RefreshToken: "token"}).Validate())
	assert.Error(t, (&LogoutRequest{}).Validate())
}

func TestPasswordRequests_Validate(t *testing.T) {
	t.Run("ForgotPassword", func(t *testing.T) {
		assert.NoError(t, (&ForgotPasswordRequest{Email: "alice@example.com"}).Validate())
		assert.Error(t, (&ForgotPasswordRequest{Email: "nope"}).Validate())
	})

	t.Run("ResetPassword", func(t *testing.T) {
		token := strings.Repeat("ab", 32)
		assert.NoError(t, (&ResetPasswordRequest{Token: token, NewPassword: "secret2"}).Validate(6))
		assert.Error(t, (&ResetPasswordRequest{Token: token, NewPassword: "short"}).Validate(6))
		assert.Error(t, (&ResetPasswordRequest{NewPassword: "secret2"}).Validate(6))
	})

	t.Run("ChangePassword", func(t *testing.T) {
		assert.NoError(t, (&ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"}).Validate(6))
		assert.Error(t, (&ChangePasswordRequest{NewPassword: "secret2"}).Validate(6))
		assert.Error(t, (&ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "short"}).Validate(6))
	})
}

func TestValidateEmailQuery(t *testing.T) {
	assert.NoError(t, ValidateEmailQuery("alice@example.com"))
	assert.Error(t, ValidateEmailQuery(""))
	assert.Error(t, ValidateEmailQuery("alice"))
}
