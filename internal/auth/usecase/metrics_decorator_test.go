package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/auth/usecase"
	usecaseMocks "github.com/allisson/identity/internal/auth/usecase/mocks"
	"github.com/allisson/identity/internal/metrics"
)

// mockBusinessMetrics is a local mock for metrics.BusinessMetrics.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *mockBusinessMetrics) RecordChallenge(ctx context.Context, outcome metrics.ChallengeOutcome) {
	m.Called(ctx, outcome)
}

func (m *mockBusinessMetrics) RecordRevocationLookup(ctx context.Context, result metrics.CacheLookup) {
	m.Called(ctx, result)
}

func expectRecorded(m *mockBusinessMetrics, ctx context.Context, operation, status string) {
	m.On("RecordOperation", ctx, "auth", operation, status).Return().Once()
	m.On("RecordDuration", ctx, "auth", operation, mock.AnythingOfType("time.Duration"), status).Return().Once()
}

func TestSessionUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Register success", func(t *testing.T) {
		mockNext := &usecaseMocks.MockSessionUseCase{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewSessionUseCaseWithMetrics(mockNext, mockMetrics)

		input := &authDomain.RegisterInput{Email: "alice@example.com"}
		user := &authDomain.User{ID: 1, Email: "alice@example.com"}

		mockNext.On("Register", ctx, input).Return(user, nil).Once()
		expectRecorded(mockMetrics, ctx, "register", "success")

		res, err := uc.Register(ctx, input)
		assert.NoError(t, err)
		assert.Equal(t, user, res)
		mockNext.AssertExpectations(t)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Login error", func(t *testing.T) {
		mockNext := &usecaseMocks.MockSessionUseCase{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewSessionUseCaseWithMetrics(mockNext, mockMetrics)

		mockNext.On("Login", ctx, "alice@example.com", "wrong").Return(authDomain.ErrInvalidCredentials).Once()
		expectRecorded(mockMetrics, ctx, "login", "error")

		err := uc.Login(ctx, "alice@example.com", "wrong")
		assert.ErrorIs(t, err, authDomain.ErrInvalidCredentials)
		mockNext.AssertExpectations(t)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Refresh success", func(t *testing.T) {
		mockNext := &usecaseMocks.MockSessionUseCase{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewSessionUseCaseWithMetrics(mockNext, mockMetrics)

		expiresAt := time.Now().Add(15 * time.Minute)
		mockNext.On("Refresh", ctx, "rt").Return("at", expiresAt, nil).Once()
		expectRecorded(mockMetrics, ctx, "refresh", "success")

		token, exp, err := uc.Refresh(ctx, "rt")
		assert.NoError(t, err)
		assert.Equal(t, "at", token)
		assert.Equal(t, expiresAt, exp)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Authenticate error", func(t *testing.T) {
		mockNext := &usecaseMocks.MockSessionUseCase{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewSessionUseCaseWithMetrics(mockNext, mockMetrics)

		mockNext.On("Authenticate", ctx, "at").Return(nil, authDomain.ErrInvalidAccessToken).Once()
		expectRecorded(mockMetrics, ctx, "authenticate", "error")

		payload, err := uc.Authenticate(ctx, "at")
		assert.Nil(t, payload)
		assert.ErrorIs(t, err, authDomain.ErrInvalidAccessToken)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("ChangePassword success", func(t *testing.T) {
		mockNext := &usecaseMocks.MockSessionUseCase{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewSessionUseCaseWithMetrics(mockNext, mockMetrics)

		uid := uuid.New()
		mockNext.On("ChangePassword", ctx, uid, "at", "old-pass", "new-pass").Return(nil).Once()
		expectRecorded(mockMetrics, ctx, "change_password", "success")

		assert.NoError(t, uc.ChangePassword(ctx, uid, "at", "old-pass", "new-pass"))
		mockMetrics.AssertExpectations(t)
	})
}

func TestHousekeepingUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("CleanupExpired error", func(t *testing.T) {
		mockNext := &usecaseMocks.MockHousekeepingUseCase{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewHousekeepingUseCaseWithMetrics(mockNext, mockMetrics)

		mockNext.On("CleanupExpired", ctx, 7, true).Return(nil, errors.New("db down")).Once()
		expectRecorded(mockMetrics, ctx, "cleanup_expired", "error")

		res, err := uc.CleanupExpired(ctx, 7, true)
		assert.Error(t, err)
		assert.Nil(t, res)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Start delegates", func(t *testing.T) {
		mockNext := &usecaseMocks.MockHousekeepingUseCase{}
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewHousekeepingUseCaseWithMetrics(mockNext, mockMetrics)

		mockNext.On("Start", ctx).Return(context.Canceled).Once()

		assert.ErrorIs(t, uc.Start(ctx), context.Canceled)
		mockMetrics.AssertNotCalled(t, "RecordOperation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
