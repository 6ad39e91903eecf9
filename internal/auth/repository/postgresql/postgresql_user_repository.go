package postgresql

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

// PostgreSQLUserRepository implements User persistence for PostgreSQL.
type PostgreSQLUserRepository struct {
	db *sql.DB
}

// NewPostgreSQLUserRepository creates a new PostgreSQL User repository.
func NewPostgreSQLUserRepository(db *sql.DB) *PostgreSQLUserRepository {
	return &PostgreSQLUserRepository{db: db}
}

// Create inserts the user and its role assignments. Both statements join the
// caller's transaction when one is present in ctx.
func (p *PostgreSQLUserRepository) Create(ctx context.Context, user *authDomain.User) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO users (uid, email, password_hash, name, display_name, avatar_url, gender,
			  birth_date, asset_user_id, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  RETURNING id`

	err := querier.QueryRowContext(
		ctx,
		query,
		user.UID,
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
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return authDomain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}

	for _, role := range user.Roles {
		_, err := querier.ExecContext(
			ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`,
			user.ID,
			role.ID,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to assign role")
		}
	}
	return nil
}

// GetByID retrieves a user by internal id.
func (p *PostgreSQLUserRepository) GetByID(ctx context.Context, id int64) (*authDomain.User, error) {
	return p.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUID retrieves a user by external id.
func (p *PostgreSQLUserRepository) GetByUID(ctx context.Context, uid uuid.UUID) (*authDomain.User, error) {
	return p.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid)
}

// GetByEmail retrieves a user by exact email.
func (p *PostgreSQLUserRepository) GetByEmail(ctx context.Context, email string) (*authDomain.User, error) {
	return p.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (p *PostgreSQLUserRepository) getBy(ctx context.Context, query string, arg any) (*authDomain.User, error) {
	querier := database.GetTx(ctx, p.db)

	var (
		user        authDomain.User
		displayName sql.NullString
		avatarURL   sql.NullString
		gender      sql.NullString
		birthDate   sql.NullTime
		assetUserID sql.NullString
	)

	err := querier.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.UID,
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

	user.DisplayName = displayName.String
	user.AvatarURL = avatarURL.String
	user.Gender = gender.String
	user.AssetUserID = assetUserID.String
	if birthDate.Valid {
		user.BirthDate = &birthDate.Time
	}

	roles, err := loadRoles(ctx, p.db, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return &user, nil
}

// ExistsByEmail reports whether a user with the email exists.
func (p *PostgreSQLUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	var exists bool
	err := querier.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).
		Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check email")
	}
	return exists, nil
}

// UpdatePassword replaces the password hash.
func (p *PostgreSQLUserRepository) UpdatePassword(
	ctx context.Context,
	id int64,
	passwordHash string,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash,
		updatedAt,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update password")
	}
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
func (p *PostgreSQLUserRepository) Lock(ctx context.Context, id int64) error {
	querier := database.GetTx(ctx, p.db)

	var locked int64
	err := querier.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authDomain.ErrUserNotFound
		}
		return apperrors.Wrap(err, "failed to lock user")
	}
	return nil
}
