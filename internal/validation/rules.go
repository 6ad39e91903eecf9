// Package validation provides custom validation rules for the application.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/identity/internal/errors"
)

var (
	// emailRegex is a basic email validation pattern
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	digitsRegex = regexp.MustCompile(`^[0-9]+$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// PasswordLength validates that a password has at least MinLength characters.
// Length is counted in runes, not bytes.
type PasswordLength struct {
	MinLength int
}

// Validate checks the password length.
func (p PasswordLength) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_password_type", "password must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}

	if utf8.RuneCountInString(s) < p.MinLength {
		return validation.NewError(
			"validation_password_min_length",
			fmt.Sprintf("password must be at least %d characters", p.MinLength),
		)
	}
	return nil
}

// Email validates email format using regex
var Email = validation.NewStringRuleWithError(
	func(s string) bool {
		return emailRegex.MatchString(s)
	},
	validation.NewError("validation_email_format", "must be a valid email address"),
)

// HTTPURL validates that a string is an absolute http or https URL.
var HTTPURL = validation.NewStringRuleWithError(
	func(s string) bool {
		u, err := url.ParseRequestURI(s)
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	},
	validation.NewError("validation_http_url", "must be a valid http or https URL"),
)

// Digits validates that a string contains only ASCII digits.
var Digits = validation.NewStringRuleWithError(
	func(s string) bool {
		return digitsRegex.MatchString(s)
	},
	validation.NewError("validation_digits", "must contain only digits"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
