// Package mocks provides testify mock implementations of the auth use cases.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	authDomain "github.com/allisson/identity/internal/auth/domain"
)

// MockSessionUseCase is a mock implementation of SessionUseCase for testing.
type MockSessionUseCase struct {
	mock.Mock
}

// Register mocks the Register method of SessionUseCase.
func (m *MockSessionUseCase) Register(
	ctx context.Context,
	input *authDomain.RegisterInput,
) (*authDomain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.User), args.Error(1)
}

// Login mocks the Login method of SessionUseCase.
func (m *MockSessionUseCase) Login(ctx context.Context, email, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

// VerifyTwoFactor mocks the VerifyTwoFactor method of SessionUseCase.
func (m *MockSessionUseCase) VerifyTwoFactor(
	ctx context.Context,
	email, code string,
) (*authDomain.IssuedTokens, error) {
	args := m.Called(ctx, email, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.IssuedTokens), args.Error(1)
}

// Refresh mocks the Refresh method of SessionUseCase.
func (m *MockSessionUseCase) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

// Logout mocks the Logout method of SessionUseCase.
func (m *MockSessionUseCase) Logout(ctx context.Context, refreshToken, accessToken string) error {
	args := m.Called(ctx, refreshToken, accessToken)
	return args.Error(0)
}

// Authenticate mocks the Authenticate method of SessionUseCase.
func (m *MockSessionUseCase) Authenticate(
	ctx context.Context,
	accessToken string,
) (*authDomain.TokenPayload, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.TokenPayload), args.Error(1)
}

// GetProfile mocks the GetProfile method of SessionUseCase.
func (m *MockSessionUseCase) GetProfile(ctx context.Context, uid uuid.UUID) (*authDomain.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.User), args.Error(1)
}

// CheckEmail mocks the CheckEmail method of SessionUseCase.
func (m *MockSessionUseCase) CheckEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// ChangePassword mocks the ChangePassword method of SessionUseCase.
func (m *MockSessionUseCase) ChangePassword(
	ctx context.Context,
	uid uuid.UUID,
	accessToken, currentPassword, newPassword string,
) error {
	args := m.Called(ctx, uid, accessToken, currentPassword, newPassword)
	return args.Error(0)
}

// RequestPasswordReset mocks the RequestPasswordReset method of SessionUseCase.
func (m *MockSessionUseCase) RequestPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// ResetPassword mocks the ResetPassword method of SessionUseCase.
func (m *MockSessionUseCase) ResetPassword(ctx context.Context, token, newPassword string) error {
	args := m.Called(ctx, token, newPassword)
	return args.Error(0)
}

// MockRoleUseCase is a mock implementation of RoleUseCase for testing.
type MockRoleUseCase struct {
	mock.Mock
}

// Create mocks the Create method of RoleUseCase.
func (m *MockRoleUseCase) Create(
	ctx context.Context,
	name, description string,
	permissions []string,
) (*authDomain.Role, error) {
	args := m.Called(ctx, name, description, permissions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Role), args.Error(1)
}

// MockHousekeepingUseCase is a mock implementation of HousekeepingUseCase for testing.
type MockHousekeepingUseCase struct {
	mock.Mock
}

// CleanupExpired mocks the CleanupExpired method of HousekeepingUseCase.
func (m *MockHousekeepingUseCase) CleanupExpired(
	ctx context.Context,
	days int,
	dryRun bool,
) (*authDomain.CleanupResult, error) {
	args := m.Called(ctx, days, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.CleanupResult), args.Error(1)
}

// Start mocks the Start method of HousekeepingUseCase.
func (m *MockHousekeepingUseCase) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
