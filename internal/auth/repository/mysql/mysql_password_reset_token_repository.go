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

const passwordResetTokensTable = "password_reset_tokens"

// MySQLPasswordResetTokenRepository implements PasswordResetToken persistence for MySQL.
type MySQLPasswordResetTokenRepository struct {
	db *sql.DB
}

// NewMySQLPasswordResetTokenRepository creates a new MySQL PasswordResetToken repository.
func NewMySQLPasswordResetTokenRepository(db *sql.DB) *MySQLPasswordResetTokenRepository {
	return &MySQLPasswordResetTokenRepository{db: db}
}

// Create inserts a reset token record.
func (m *MySQLPasswordResetTokenRepository) Create(
	ctx context.Context,
	token *authDomain.PasswordResetToken,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := uuidBytes(token.ID)
	if err != nil {
		return err
	}

	query := `INSERT INTO password_reset_tokens (id, email, token_hash, expires_at, created_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, id, token.Email, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create password reset token")
	}
	return nil
}

// GetByTokenHash retrieves a reset token by the SHA-256 hash of its value.
func (m *MySQLPasswordResetTokenRepository) GetByTokenHash(
	ctx context.Context,
	tokenHash string,
) (*authDomain.PasswordResetToken, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, email, token_hash, expires_at, created_at
			  FROM password_reset_tokens WHERE token_hash = ?`

	var (
		token authDomain.PasswordResetToken
		id    []byte
	)
	err := querier.QueryRowContext(ctx, query, tokenHash).Scan(
		&id,
		&token.Email,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrPasswordResetTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get password reset token")
	}
	if token.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteByEmail removes every reset token issued for the email.
func (m *MySQLPasswordResetTokenRepository) DeleteByEmail(ctx context.Context, email string) error {
	querier := database.GetTx(ctx, m.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE email = ?`, email); err != nil {
		return apperrors.Wrap(err, "failed to delete password reset tokens")
	}
	return nil
}

// Delete removes one reset token and reports whether this call removed it.
func (m *MySQLPasswordResetTokenRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	b, err := uuidBytes(id)
	if err != nil {
		return false, err
	}
	deleted, err := deleteOne(ctx, m.db, `DELETE FROM password_reset_tokens WHERE id = ?`, b)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete password reset token")
	}
	return deleted, nil
}

// DeleteExpired deletes reset tokens that expired before olderThan.
func (m *MySQLPasswordResetTokenRepository) DeleteExpired(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	return deleteExpired(ctx, m.db, passwordResetTokensTable, olderThan)
}

// CountExpired counts reset tokens that expired before olderThan.
func (m *MySQLPasswordResetTokenRepository) CountExpired(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	return countExpired(ctx, m.db, passwordResetTokensTable, olderThan)
}
