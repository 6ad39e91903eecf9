package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
)

const userColumns = `id, uid, email, password_hash, name, display_name, avatar_url, gender,
			  birth_date, asset_user_id, created_at, updated_at`

// MySQLUserRepository implements User persistence for MySQL.
type MySQLUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new MySQL User repository.
func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

// Create inserts the user and its role assignments.
func (m *MySQLUserRepository) Create(ctx context.Context, user *authDomain.User) error {
	querier := database.GetTx(ctx, m.db)

	uid, err := uuidBytes(user.UID)
	if err != nil {
		return err
	}

	query := `INSERT INTO users (uid, email, password_hash, name, display_name, avatar_url, gender,
			  birth_date, asset_user_id, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := querier.ExecContext(
		ctx,
		query,
		uid,
		user.Email,
		user.PasswordHash,
		user.Name,
		nullString(user.DisplayName),
		nullString(user.AvatarURL),
		nullString(user.Gender),
		nullTime(user.BirthDate),
		nullString(user.AssetUserID),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return authDomain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return apperrors.Wrap(err, "failed to get user id")
	}

	for _, role := range user.Roles {
		_, err := querier.ExecContext(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, user.ID, role.ID)
		if err != nil {
			return apperrors.Wrap(err, "failed to assign role")
		}
	}
	return nil
}

// GetByID retrieves a user by internal id.
func (m *MySQLUserRepository) GetByID(ctx context.Context, id int64) (*authDomain.User, error) {
	return m.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByUID retrieves a user by external id.
func (m *MySQLUserRepository) GetByUID(ctx context.Context, uid uuid.UUID) (*authDomain.User, error) {
	b, err := uuidBytes(uid)
	if err != nil {
		return nil, err
	}
	return m.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE uid = ?`, b)
}

// GetByEmail retrieves a user by exact email.
func (m *MySQLUserRepository) GetByEmail(ctx context.Context, email string) (*authDomain.User, error) {
	return m.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (m *MySQLUserRepository) getBy(ctx context.Context, query string, arg any) (*authDomain.User, error) {
	querier := database.GetTx(ctx, m.db)

	var (
		user        authDomain.User
		uid         []byte
		displayName sql.NullString
		avatarURL   sql.NullString
		gender      sql.NullString
		birthDate   sql.NullTime
		assetUserID sql.NullString
	)

	err := querier.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&uid,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&displayName,
		&avatarURL,
		&gender,
		&birthDate,
		&assetUserID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user")
	}

	if user.UID, err = parseUUID(uid); err != nil {
		return nil, err
	}
	user.DisplayName = displayName.String
	user.AvatarURL = avatarURL.String
	user.Gender = gender.String
	user.AssetUserID = assetUserID.String
	if birthDate.Valid {
		user.BirthDate = &birthDate.Time
	}

	roles, err := loadRoles(ctx, m.db, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return &user, nil
}

// ExistsByEmail reports whether a user with the email exists.
func (m *MySQLUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	var exists bool
	err := querier.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).
		Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check email")
	}
	return exists, nil
}

// UpdatePassword replaces the password hash.
func (m *MySQLUserRepository) UpdatePassword(
	ctx context.Context,
	id int64,
	passwordHash string,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash,
		updatedAt,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update password")
	}
	// Salted hashes always differ, so a matched row is always a changed row.
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return authDomain.ErrUserNotFound
	}
	return nil
}

// Lock takes a FOR UPDATE lock on the user row. Must run inside a transaction.
func (m *MySQLUserRepository) Lock(ctx context.Context, id int64) error {
	querier := database.GetTx(ctx, m.db)

	var locked int64
	err := querier.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ? FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authDomain.ErrUserNotFound
		}
		return apperrors.Wrap(err, "failed to lock user")
	}
	return nil
}
