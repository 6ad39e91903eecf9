package usecase

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	authService "github.com/allisson/identity/internal/auth/service"
	"github.com/allisson/identity/internal/config"
	"github.com/allisson/identity/internal/mailer"
	"github.com/allisson/identity/internal/metrics"
)

// memStore is an in-memory credential store. WithTx serializes transactions and
// restores a snapshot when fn fails, which mirrors commit and rollback.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextUserID int64
	users      map[int64]authDomain.User
	roles      map[string]authDomain.Role
	refresh    map[string]authDomain.RefreshTokenRecord
	revoked    map[string]authDomain.RevokedToken
	twoFactor  map[int64]authDomain.TwoFactorToken
	reset      map[string]authDomain.PasswordResetToken
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		users:     map[int64]authDomain.User{},
		roles:     map[string]authDomain.Role{},
		refresh:   map[string]authDomain.RefreshTokenRecord{},
		revoked:   map[string]authDomain.RevokedToken{},
		twoFactor: map[int64]authDomain.TwoFactorToken{},
		reset:     map[string]authDomain.PasswordResetToken{},
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.restore(snapshot)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) clone() *memStore {
	return &memStore{
		nextUserID: s.nextUserID,
		users:      maps.Clone(s.users),
		roles:      maps.Clone(s.roles),
		refresh:    maps.Clone(s.refresh),
		revoked:    maps.Clone(s.revoked),
		twoFactor:  maps.Clone(s.twoFactor),
		reset:      maps.Clone(s.reset),
	}
}

func (s *memStore) restore(c *memStore) {
	s.nextUserID = c.nextUserID
	s.users = c.users
	s.roles = c.roles
	s.refresh = c.refresh
	s.revoked = c.revoked
	s.twoFactor = c.twoFactor
	s.reset = c.reset
}

func (s *memStore) seedRole(name string, permissions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role := authDomain.Role{ID: int64(len(s.roles) + 1), Name: name}
	for i, p := range permissions {
		role.Permissions = append(role.Permissions, authDomain.Permission{ID: int64(i + 1), Name: p})
	}
	s.roles[name] = role
}

func (s *memStore) counts() (refresh, revoked, twoFactor, reset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh), len(s.revoked), len(s.twoFactor), len(s.reset)
}

// memUsers implements UserRepository.
type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, user *authDomain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return authDomain.ErrUserAlreadyExists
		}
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	r.s.users[user.ID] = *user
	return nil
}

func (r memUsers) find(match func(authDomain.User) bool) (*authDomain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, authDomain.ErrUserNotFound
}

func (r memUsers) GetByID(_ context.Context, id int64) (*authDomain.User, error) {
	return r.find(func(u authDomain.User) bool { return u.ID == id })
}

func (r memUsers) GetByUID(_ context.Context, uid uuid.UUID) (*authDomain.User, error) {
	return r.find(func(u authDomain.User) bool { return u.UID == uid })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*authDomain.User, error) {
	return r.find(func(u authDomain.User) bool { return u.Email == email })
}

func (r memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, authDomain.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r memUsers) UpdatePassword(_ context.Context, id int64, hash string, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return authDomain.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = updatedAt
	r.s.users[id] = u
	return nil
}

func (r memUsers) Lock(ctx context.Context, id int64) error {
	if ctx.Value(memTxKey{}) == nil {
		return errors.New("lock outside transaction")
	}
	_, err := r.GetByID(ctx, id)
	return err
}

// memRoles implements RoleRepository.
type memRoles struct{ s *memStore }

func (r memRoles) GetByName(_ context.Context, name string) (*authDomain.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[name]
	if !ok {
		return nil, authDomain.ErrRoleNotFound
	}
	return &role, nil
}

func (r memRoles) Create(_ context.Context, role *authDomain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[role.Name]; ok {
		return authDomain.ErrRoleAlreadyExists
	}
	role.ID = int64(len(r.s.roles) + 1)
	r.s.roles[role.Name] = *role
	return nil
}

func countBefore[V any](mu *sync.Mutex, m map[string]V, expiry func(V) time.Time, olderThan time.Time, del bool) int64 {
	mu.Lock()
	defer mu.Unlock()
	var n int64
	for k, v := range m {
		if expiry(v).Before(olderThan) {
			n++
			if del {
				delete(m, k)
			}
		}
	}
	return n
}

// memRefresh implements RefreshTokenRepository.
type memRefresh struct{ s *memStore }

func (r memRefresh) Create(_ context.Context, token *authDomain.RefreshTokenRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.refresh {
		if t.UserID == token.UserID {
			return errors.New("duplicate key refresh_tokens.user_id")
		}
	}
	r.s.refresh[token.TokenHash] = *token
	return nil
}

func (r memRefresh) GetByTokenHash(_ context.Context, hash string) (*authDomain.RefreshTokenRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refresh[hash]
	if !ok {
		return nil, authDomain.ErrRefreshTokenNotFound
	}
	return &t, nil
}

func (r memRefresh) DeleteByUserID(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.refresh {
		if t.UserID == userID {
			delete(r.s.refresh, k)
		}
	}
	return nil
}

func (r memRefresh) DeleteByTokenHash(_ context.Context, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.refresh, hash)
	return nil
}

func (r memRefresh) DeleteExpired(_ context.Context, olderThan time.Time) (int64, error) {
	return countBefore(&r.s.mu, r.s.refresh, func(t authDomain.RefreshTokenRecord) time.Time { return t.ExpiresAt }, olderThan, true), nil
}

func (r memRefresh) CountExpired(_ context.Context, olderThan time.Time) (int64, error) {
	return countBefore(&r.s.mu, r.s.refresh, func(t authDomain.RefreshTokenRecord) time.Time { return t.ExpiresAt }, olderThan, false), nil
}

// memRevoked implements RevokedTokenRepository.
type memRevoked struct{ s *memStore }

func (r memRevoked) Create(_ context.Context, token *authDomain.RevokedToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.revoked[token.TokenHash]; !ok {
		r.s.revoked[token.TokenHash] = *token
	}
	return nil
}

func (r memRevoked) ExistsByTokenHash(_ context.Context, hash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.revoked[hash]
	return ok, nil
}

func (r memRevoked) DeleteExpired(_ context.Context, olderThan time.Time) (int64, error) {
	return countBefore(&r.s.mu, r.s.revoked, func(t authDomain.RevokedToken) time.Time { return t.ExpiresAt }, olderThan, true), nil
}

func (r memRevoked) CountExpired(_ context.Context, olderThan time.Time) (int64, error) {
	return countBefore(&r.s.mu, r.s.revoked, func(t authDomain.RevokedToken) time.Time { return t.ExpiresAt }, olderThan, false), nil
}

// memTwoFactor implements TwoFactorTokenRepository.
type memTwoFactor struct{ s *memStore }

func (r memTwoFactor) Create(_ context.Context, token *authDomain.TwoFactorToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.twoFactor[token.UserID]; ok {
		return errors.New("duplicate key two_factor_tokens.user_id")
	}
	r.s.twoFactor[token.UserID] = *token
	return nil
}

func (r memTwoFactor) GetByUserID(_ context.Context, userID int64) (*authDomain.TwoFactorToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.twoFactor[userID]
	if !ok {
		return nil, authDomain.ErrTwoFactorTokenNotFound
	}
	return &t, nil
}

func (r memTwoFactor) DeleteByUserID(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.twoFactor, userID)
	return nil
}

func (r memTwoFactor) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.twoFactor {
		if t.ID == id {
			delete(r.s.twoFactor, k)
			return true, nil
		}
	}
	return false, nil
}

func (r memTwoFactor) RecordFailure(_ context.Context, id uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.twoFactor {
		if t.ID == id {
			t.Attempts++
			r.s.twoFactor[k] = t
			return t.Attempts, nil
		}
	}
	return 0, authDomain.ErrTwoFactorTokenNotFound
}

func (r memTwoFactor) DeleteExpired(_ context.Context, olderThan time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, t := range r.s.twoFactor {
		if t.ExpiresAt.Before(olderThan) {
			delete(r.s.twoFactor, k)
			n++
		}
	}
	return n, nil
}

func (r memTwoFactor) CountExpired(_ context.Context, olderThan time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.twoFactor {
		if t.ExpiresAt.Before(olderThan) {
			n++
		}
	}
	return n, nil
}

// memReset implements PasswordResetTokenRepository.
type memReset struct{ s *memStore }

func (r memReset) Create(_ context.Context, token *authDomain.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.reset[token.TokenHash] = *token
	return nil
}

func (r memReset) GetByTokenHash(_ context.Context, hash string) (*authDomain.PasswordResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.reset[hash]
	if !ok {
		return nil, authDomain.ErrPasswordResetTokenNotFound
	}
	return &t, nil
}

func (r memReset) DeleteByEmail(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.reset {
		if t.Email == email {
			delete(r.s.reset, k)
		}
	}
	return nil
}

func (r memReset) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.reset {
		if t.ID == id {
			delete(r.s.reset, k)
			return true, nil
		}
	}
	return false, nil
}

func (r memReset) DeleteExpired(_ context.Context, olderThan time.Time) (int64, error) {
	return countBefore(&r.s.mu, r.s.reset, func(t authDomain.PasswordResetToken) time.Time { return t.ExpiresAt }, olderThan, true), nil
}

func (r memReset) CountExpired(_ context.Context, olderThan time.Time) (int64, error) {
	return countBefore(&r.s.mu, r.s.reset, func(t authDomain.PasswordResetToken) time.Time { return t.ExpiresAt }, olderThan, false), nil
}

// memCache implements RevocationCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]struct{}
}

func (c *memCache) MarkRevoked(_ context.Context, hash string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl > 0 {
		c.entries[hash] = struct{}{}
	}
	return nil
}

func (c *memCache) IsRevoked(_ context.Context, hash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[hash]
	return ok, nil
}

// memMailer records sent messages and fails while err is set.
type memMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *memMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *memMailer) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func mailerMessage() mailer.Message {
	return mailer.Message{To: "alice@example.com", Subject: "hello", TextBody: "hello"}
}

var (
	codePattern  = regexp.MustCompile(`\b\d{6}\b`)
	tokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)
)

func (m *memMailer) last(t *testing.T) mailer.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no message sent")
	return m.sent[len(m.sent)-1]
}

func (m *memMailer) lastCode(t *testing.T) string {
	t.Helper()
	code := codePattern.FindString(m.last(t).TextBody)
	require.NotEmpty(t, code)
	return code
}

func (m *memMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	match := tokenPattern.FindStringSubmatch(m.last(t).TextBody)
	require.Len(t, match, 2)
	return match[1]
}

// testClock is a settable clock shared by the codec and the use cases.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv wires the real services and use cases over memStore.
type testEnv struct {
	cfg           *config.Config
	store         *memStore
	cache         *memCache
	mailer        *memMailer
	clock         *testClock
	passwords     authService.PasswordService
	codec         authService.TokenCodec
	tokens        authService.TokenService
	twoFactor     TwoFactorUseCase
	revocation    RevocationUseCase
	passwordReset PasswordResetUseCase
	session       SessionUseCase
	housekeeping  HousekeepingUseCase
}

func testConfig() *config.Config {
	return &config.Config{
		JWTAccessExpiration:     15 * time.Minute,
		JWTRefreshExpiration:    7 * 24 * time.Hour,
		JWTIssuer:               "identity-test",
		PasswordMinLength:       6,
		TwoFactorExpiration:     15 * time.Minute,
		TwoFactorMaxAttempts:    5,
		PasswordResetExpiration: 2 * time.Hour,
		PasswordResetURL:        "https://app.example.com/reset-password",
		DefaultRole:             "administrator",
		EmailSendTimeout:        time.Second,
		HousekeepingInterval:    time.Hour,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.DiscardHandler)

	passwords, err := authService.NewPasswordService(authService.AlgorithmBcrypt, 4)
	require.NoError(t, err)

	codec, err := authService.NewJWTService(authService.JWTConfig{
		AccessSecret:  []byte("access-secret-for-tests-0123456789"),
		RefreshSecret: []byte("refresh-secret-for-tests-0123456789"),
		AccessTTL:     cfg.JWTAccessExpiration,
		RefreshTTL:    cfg.JWTRefreshExpiration,
		Issuer:        cfg.JWTIssuer,
		Now:           clock.Now,
	})
	require.NoError(t, err)

	tokens := authService.NewTokenService()
	store := newMemStore()
	store.seedRole("administrator", "users:read", "users:write")
	store.seedRole("viewer", "users:read")
	cache := &memCache{entries: map[string]struct{}{}}
	mail := &memMailer{}

	users := memUsers{store}

	noMetrics := metrics.NewNoOpBusinessMetrics()

	twoFactor := NewTwoFactorUseCase(cfg, store, users, memTwoFactor{store}, tokens, mail, noMetrics, logger)
	twoFactor.(*twoFactorUseCase).now = clock.Now

	revocation := NewRevocationUseCase(
		cfg, store, users, memRefresh{store}, memRevoked{store}, cache, codec, tokens, noMetrics, logger,
	)
	revocation.(*revocationUseCase).now = clock.Now

	passwordReset := NewPasswordResetUseCase(
		cfg, store, users, memReset{store}, revocation, passwords, tokens, mail, logger,
	)
	passwordReset.(*passwordResetUseCase).now = clock.Now

	session := NewSessionUseCase(
		cfg, store, users, memRoles{store}, passwords, codec, twoFactor, revocation, passwordReset, logger,
	)
	session.(*sessionUseCase).now = clock.Now

	housekeeping := NewHousekeepingUseCase(
		cfg, memRefresh{store}, memRevoked{store}, memTwoFactor{store}, memReset{store}, logger,
	)
	housekeeping.(*housekeepingUseCase).now = clock.Now

	return &testEnv{
		cfg:           cfg,
		store:         store,
		cache:         cache,
		mailer:        mail,
		clock:         clock,
		passwords:     passwords,
		codec:         codec,
		tokens:        tokens,
		twoFactor:     twoFactor,
		revocation:    revocation,
		passwordReset: passwordReset,
		session:       session,
		housekeeping:  housekeeping,
	}
}

// register creates a user through the session use case.
func (e *testEnv) register(t *testing.T, email, password, role string) *authDomain.User {
	t.Helper()
	user, err := e.session.Register(context.Background(), &authDomain.RegisterInput{
		Email:    email,
		Password: password,
		Name:     "Test User",
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

// login runs both login steps and returns the issued tokens.
func (e *testEnv) login(t *testing.T, email, password string) *authDomain.IssuedTokens {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.session.Login(ctx, email, password))
	tokens, err := e.session.VerifyTwoFactor(ctx, email, e.mailer.lastCode(t))
	require.NoError(t, err)
	return tokens
}
