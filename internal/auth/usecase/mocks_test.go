package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/mailer"
	"github.com/allisson/identity/internal/metrics"
)

// mockTxManager runs fn inline unless an error is configured.
type mockTxManager struct {
	mock.Mock
}

func (m *mockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// mockUserRepository is a mock implementation of UserRepository for testing.
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *authDomain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*authDomain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.User), args.Error(1)
}

func (m *mockUserRepository) GetByUID(ctx context.Context, uid uuid.UUID) (*authDomain.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*authDomain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.User), args.Error(1)
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id int64, hash string, updatedAt time.Time) error {
	return m.Called(ctx, id, hash, updatedAt).Error(0)
}

func (m *mockUserRepository) Lock(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// mockRoleRepository is a mock implementation of RoleRepository for testing.
type mockRoleRepository struct {
	mock.Mock
}

func (m *mockRoleRepository) GetByName(ctx context.Context, name string) (*authDomain.Role, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Role), args.Error(1)
}

func (m *mockRoleRepository) Create(ctx context.Context, role *authDomain.Role) error {
	return m.Called(ctx, role).Error(0)
}

// mockExpiredTokenRepository covers the pruning methods shared by token repositories.
type mockExpiredTokenRepository struct {
	mock.Mock
}

func (m *mockExpiredTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockExpiredTokenRepository) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// mockRefreshTokenRepository is a mock implementation of RefreshTokenRepository for testing.
type mockRefreshTokenRepository struct {
	mockExpiredTokenRepository
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *authDomain.RefreshTokenRecord) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockRefreshTokenRepository) GetByTokenHash(
	ctx context.Context,
	tokenHash string,
) (*authDomain.RefreshTokenRecord, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.RefreshTokenRecord), args.Error(1)
}

func (m *mockRefreshTokenRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockRefreshTokenRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

// mockRevokedTokenRepository is a mock implementation of RevokedTokenRepository for testing.
type mockRevokedTokenRepository struct {
	mockExpiredTokenRepository
}

func (m *mockRevokedTokenRepository) Create(ctx context.Context, token *authDomain.RevokedToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockRevokedTokenRepository) ExistsByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	args := m.Called(ctx, tokenHash)
	return args.Bool(0), args.Error(1)
}

// mockTwoFactorTokenRepository is a mock implementation of TwoFactorTokenRepository for testing.
type mockTwoFactorTokenRepository struct {
	mockExpiredTokenRepository
}

func (m *mockTwoFactorTokenRepository) Create(ctx context.Context, token *authDomain.TwoFactorToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockTwoFactorTokenRepository) GetByUserID(
	ctx context.Context,
	userID int64,
) (*authDomain.TwoFactorToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.TwoFactorToken), args.Error(1)
}

func (m *mockTwoFactorTokenRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockTwoFactorTokenRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockTwoFactorTokenRepository) RecordFailure(ctx context.Context, id uuid.UUID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

// mockPasswordResetTokenRepository is a mock implementation of PasswordResetTokenRepository for testing.
type mockPasswordResetTokenRepository struct {
	mockExpiredTokenRepository
}

func (m *mockPasswordResetTokenRepository) Create(ctx context.Context, token *authDomain.PasswordResetToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockPasswordResetTokenRepository) GetByTokenHash(
	ctx context.Context,
	tokenHash string,
) (*authDomain.PasswordResetToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.PasswordResetToken), args.Error(1)
}

func (m *mockPasswordResetTokenRepository) DeleteByEmail(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockPasswordResetTokenRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// mockRevocationCache is a mock implementation of RevocationCache for testing.
type mockRevocationCache struct {
	mock.Mock
}

func (m *mockRevocationCache) MarkRevoked(ctx context.Context, tokenHash string, ttl time.Duration) error {
	return m.Called(ctx, tokenHash, ttl).Error(0)
}

func (m *mockRevocationCache) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	args := m.Called(ctx, tokenHash)
	return args.Bool(0), args.Error(1)
}

// mockMailer is a mock implementation of Mailer for testing.
type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// mockTokenService is a mock implementation of TokenService for testing.
type mockTokenService struct {
	mock.Mock
}

func (m *mockTokenService) GenerateResetToken() (string, string, error) {
	args := m.Called()
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockTokenService) GenerateChallengeCode() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockTokenService) HashToken(plainToken string) string {
	return m.Called(plainToken).String(0)
}

// mockTokenCodec is a mock implementation of TokenCodec for testing.
type mockTokenCodec struct {
	mock.Mock
}

func (m *mockTokenCodec) Sign(payload authDomain.TokenPayload, kind authDomain.TokenKind) (string, time.Time, error) {
	args := m.Called(payload, kind)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *mockTokenCodec) Verify(token string, kind authDomain.TokenKind) (*authDomain.TokenPayload, error) {
	args := m.Called(token, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.TokenPayload), args.Error(1)
}

// recordingMetrics keeps the credential events it is given.
type recordingMetrics struct {
	metrics.NoOpBusinessMetrics

	mu         sync.Mutex
	challenges []metrics.ChallengeOutcome
	lookups    []metrics.CacheLookup
}

func (r *recordingMetrics) RecordChallenge(_ context.Context, outcome metrics.ChallengeOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges = append(r.challenges, outcome)
}

func (r *recordingMetrics) RecordRevocationLookup(_ context.Context, result metrics.CacheLookup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, result)
}

func (r *recordingMetrics) challengeOutcomes() []metrics.ChallengeOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.ChallengeOutcome(nil), r.challenges...)
}

func (r *recordingMetrics) cacheLookups() []metrics.CacheLookup {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.CacheLookup(nil), r.lookups...)
}
