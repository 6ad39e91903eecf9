package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var userCols = []string{
	"id", "uid", "email", "password_hash", "name", "display_name", "avatar_url", "gender",
	"birth_date", "asset_user_id", "created_at", "updated_at",
}

var roleCols = []string{"r.id", "r.name", "r.description", "p.id", "p.name"}

func TestPostgreSQLUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success_AssignsRoles", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLUserRepository(db)

		user := &authDomain.User{
			UID:          uuid.Must(uuid.NewV7()),
			Email:        "alice@example.com",
			PasswordHash: "$argon2id$...",
			Name:         "Alice",
			Roles:        []authDomain.Role{{ID: 3, Name: "administrator"}},
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		mock.ExpectQuery("INSERT INTO users").
			WithArgs(user.UID, user.Email, user.PasswordHash, user.Name,
				sql.NullString{}, sql.NullString{}, sql.NullString{}, sql.NullTime{}, sql.NullString{},
				now, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
		mock.ExpectExec("INSERT INTO user_roles").
			WithArgs(int64(42), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, user))
		assert.Equal(t, int64(42), user.ID)
	})

	t.Run("Error_DuplicateEmail", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLUserRepository(db)

		mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, &authDomain.User{UID: uuid.New(), Email: "alice@example.com"})
		assert.ErrorIs(t, err, authDomain.ErrUserAlreadyExists)
	})
}

func TestPostgreSQLUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	uid := uuid.Must(uuid.NewV7())

	t.Run("Success_WithRolesAndPermissions", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLUserRepository(db)

		birth := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(
				int64(7), uid.String(), "alice@example.com", "hash", "Alice",
				"Ally", nil, nil, birth, nil, now, now,
			))
		mock.ExpectQuery("FROM user_roles").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(roleCols).
				AddRow(int64(1), "administrator", "", int64(10), "users:read").
				AddRow(int64(1), "administrator", "", int64(11), "users:write").
				AddRow(int64(2), "auditor", "", nil, nil))

		user, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
		assert.Equal(t, uid, user.UID)
		assert.Equal(t, "Ally", user.DisplayName)
		assert.Empty(t, user.AvatarURL)
		require.NotNil(t, user.BirthDate)
		assert.True(t, birth.Equal(*user.BirthDate))
		assert.Equal(t, []string{"administrator", "auditor"}, user.RoleNames())
		assert.Equal(t, []string{"users:read", "users:write"}, user.PermissionNames())
		assert.Empty(t, user.Roles[1].Permissions)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLUserRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM users WHERE email").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, authDomain.ErrUserNotFound)
	})
}

func TestPostgreSQLUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("UPDATE users SET password_hash").
			WithArgs("new-hash", now, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, NewPostgreSQLUserRepository(db).UpdatePassword(ctx, 7, "new-hash", now))
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("UPDATE users SET password_hash").WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewPostgreSQLUserRepository(db).UpdatePassword(ctx, 7, "new-hash", now)
		assert.ErrorIs(t, err, authDomain.ErrUserNotFound)
	})
}

func TestPostgreSQLUserRepository_LockInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM users WHERE id = (.+) FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	err := database.NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		return repo.Lock(ctx, 7)
	})
	assert.NoError(t, err)
}

func TestPostgreSQLRoleRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_GetByName", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM roles r").
			WithArgs("administrator").
			WillReturnRows(sqlmock.NewRows(roleCols).
				AddRow(int64(1), "administrator", "full access", int64(10), "users:read"))

		role, err := NewPostgreSQLRoleRepository(db).GetByName(ctx, "administrator")
		require.NoError(t, err)
		assert.Equal(t, "administrator", role.Name)
		assert.Len(t, role.Permissions, 1)
	})

	t.Run("Error_RoleNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM roles r").WillReturnRows(sqlmock.NewRows(roleCols))

		_, err := NewPostgreSQLRoleRepository(db).GetByName(ctx, "ghost")
		assert.ErrorIs(t, err, authDomain.ErrRoleNotFound)
	})

	t.Run("Success_CreateWithPermissions", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("INSERT INTO roles").
			WithArgs("editor", "edits content").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
		mock.ExpectQuery("INSERT INTO permissions").
			WithArgs("content:write").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(20)))
		mock.ExpectExec("INSERT INTO role_permissions").
			WithArgs(int64(5), int64(20)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		role := &authDomain.Role{
			Name:        "editor",
			Description: "edits content",
			Permissions: []authDomain.Permission{{Name: "content:write"}},
		}
		require.NoError(t, NewPostgreSQLRoleRepository(db).Create(ctx, role))
		assert.Equal(t, int64(5), role.ID)
		assert.Equal(t, int64(20), role.Permissions[0].ID)
	})

	t.Run("Error_Duplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("INSERT INTO roles").WillReturnError(&pq.Error{Code: "23505"})

		err := NewPostgreSQLRoleRepository(db).Create(ctx, &authDomain.Role{Name: "editor"})
		assert.ErrorIs(t, err, authDomain.ErrRoleAlreadyExists)
	})
}

func TestPostgreSQLRefreshTokenRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success_GetByTokenHash", func(t *testing.T) {
		db, mock := newMockDB(t)
		id := uuid.New()
		mock.ExpectQuery("FROM refresh_tokens WHERE token_hash").
			WithArgs("abc").
			WillReturnRows(sqlmock.NewRows([]string{"id", "token_hash", "user_id", "expires_at", "created_at"}).
				AddRow(id.String(), "abc", int64(7), now.Add(time.Hour), now))

		token, err := NewPostgreSQLRefreshTokenRepository(db).GetByTokenHash(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, id, token.ID)
		assert.Equal(t, int64(7), token.UserID)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM refresh_tokens WHERE token_hash").WillReturnError(sql.ErrNoRows)

		_, err := NewPostgreSQLRefreshTokenRepository(db).GetByTokenHash(ctx, "abc")
		assert.ErrorIs(t, err, authDomain.ErrRefreshTokenNotFound)
	})

	t.Run("Success_DeleteMissingIsNoop", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM refresh_tokens WHERE token_hash").
			WithArgs("gone").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, NewPostgreSQLRefreshTokenRepository(db).DeleteByTokenHash(ctx, "gone"))
	})

	t.Run("Success_ReplaceInTransaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRefreshTokenRepository(db)
		token := &authDomain.RefreshTokenRecord{
			ID: uuid.New(), TokenHash: "new", UserID: 7, ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		}

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM refresh_tokens WHERE user_id").
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO refresh_tokens").
			WithArgs(token.ID, "new", int64(7), token.ExpiresAt, token.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := database.NewTxManager(db).WithTx(ctx, func(ctx context.Context) error {
			if err := repo.DeleteByUserID(ctx, 7); err != nil {
				return err
			}
			return repo.Create(ctx, token)
		})
		assert.NoError(t, err)
	})
}

func TestPostgreSQLRevokedTokenRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success_CreateIsIdempotent", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRevokedTokenRepository(db)
		token := &authDomain.RevokedToken{ID: uuid.New(), TokenHash: "h", ExpiresAt: now, RevokedAt: now}

		mock.ExpectExec("ON CONFLICT \\(token_hash\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("ON CONFLICT \\(token_hash\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, repo.Create(ctx, token))
		assert.NoError(t, repo.Create(ctx, token))
	})

	t.Run("Success_Exists", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("h").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := NewPostgreSQLRevokedTokenRepository(db).ExistsByTokenHash(ctx, "h")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Success_DeleteExpired", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM revoked_tokens WHERE expires_at").
			WithArgs(now).
			WillReturnResult(sqlmock.NewResult(0, 12))

		n, err := NewPostgreSQLRevokedTokenRepository(db).DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)
	})

	t.Run("Error_ZeroCutoff", func(t *testing.T) {
		db, _ := newMockDB(t)
		_, err := NewPostgreSQLRevokedTokenRepository(db).CountExpired(ctx, time.Time{})
		assert.ErrorContains(t, err, "cannot be zero")
	})
}

func TestPostgreSQLTwoFactorTokenRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	id := uuid.New()

	t.Run("Success_GetByUserID", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM two_factor_tokens WHERE user_id").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code", "attempts", "expires_at", "created_at"}).
				AddRow(id.String(), int64(7), "123456", 2, now.Add(15*time.Minute), now))

		token, err := NewPostgreSQLTwoFactorTokenRepository(db).GetByUserID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "123456", token.Code)
		assert.Equal(t, 2, token.Attempts)
	})

	t.Run("Success_RecordFailure", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("UPDATE two_factor_tokens SET attempts = attempts \\+ 1").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))

		attempts, err := NewPostgreSQLTwoFactorTokenRepository(db).RecordFailure(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("Error_RecordFailureOnDeletedChallenge", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("UPDATE two_factor_tokens SET attempts").WithArgs(id).WillReturnError(sql.ErrNoRows)

		_, err := NewPostgreSQLTwoFactorTokenRepository(db).RecordFailure(ctx, id)
		assert.ErrorIs(t, err, authDomain.ErrTwoFactorTokenNotFound)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM two_factor_tokens WHERE user_id").WillReturnError(sql.ErrNoRows)

		_, err := NewPostgreSQLTwoFactorTokenRepository(db).GetByUserID(ctx, 7)
		assert.ErrorIs(t, err, authDomain.ErrTwoFactorTokenNotFound)
	})

	t.Run("Success_DeleteReportsWinner", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLTwoFactorTokenRepository(db)
		mock.ExpectExec("DELETE FROM two_factor_tokens WHERE id").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM two_factor_tokens WHERE id").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))

		first, err := repo.Delete(ctx, id)
		require.NoError(t, err)
		second, err := repo.Delete(ctx, id)
		require.NoError(t, err)
		assert.True(t, first)
		assert.False(t, second)
	})

	t.Run("Error_DeleteFails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM two_factor_tokens WHERE id").WillReturnError(errors.New("conn reset"))

		_, err := NewPostgreSQLTwoFactorTokenRepository(db).Delete(ctx, id)
		assert.ErrorContains(t, err, "failed to delete two-factor token")
	})
}

func TestPostgreSQLPasswordResetTokenRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success_CountExpired", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM password_reset_tokens").
			WithArgs(now).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

		n, err := NewPostgreSQLPasswordResetTokenRepository(db).CountExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM password_reset_tokens WHERE token_hash").WillReturnError(sql.ErrNoRows)

		_, err := NewPostgreSQLPasswordResetTokenRepository(db).GetByTokenHash(ctx, "x")
		assert.ErrorIs(t, err, authDomain.ErrPasswordResetTokenNotFound)
	})

	t.Run("Success_DeleteByEmail", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM password_reset_tokens WHERE email").
			WithArgs("alice@example.com").
			WillReturnResult(sqlmock.NewResult(0, 2))

		assert.NoError(t, NewPostgreSQLPasswordResetTokenRepository(db).DeleteByEmail(ctx, "alice@example.com"))
	})
}
