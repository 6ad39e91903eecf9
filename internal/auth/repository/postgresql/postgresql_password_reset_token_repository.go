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

const passwordResetTokensTable = "password_reset_tokens"

// PostgreSQLPasswordResetTokenRepository implements PasswordResetToken persistence for PostgreSQL.
type PostgreSQLPasswordResetTokenRepository struct {
	db *sql.DB
}

// NewPostgreSQLPasswordResetTokenRepository creates a new PostgreSQL PasswordResetToken repository.
func NewPostgreSQLPasswordResetTokenRepository(db *sql.DB) *PostgreSQLPasswordResetTokenRepository {
	return &PostgreSQLPasswordResetTokenRepository{db: db}
}

// Create inserts a reset token record.
func (p *PostgreSQLPasswordResetTokenRepository) Create(
	ctx context.Context,
	token *authDomain.PasswordResetToken,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO password_reset_tokens (id, email, token_hash, expires_at, created_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(ctx, query, token.ID, token.Email, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create password reset token")
	}
	return nil
}

// GetByTokenHash retrieves a reset token by the SHA-256 hash of its value.
func (p *PostgreSQLPasswordResetTokenRepository) GetByTokenHash(
	ctx context.Context,
	tokenHash string,
) (*authDomain.PasswordResetToken, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, email, token_hash, expires_at, created_at
			  FROM password_reset_tokens WHERE token_hash = $1`

	var token authDomain.PasswordResetToken
	err := querier.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
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
	return &token, nil
}

// DeleteByEmail removes every reset token issued for the email.
func (p *PostgreSQLPasswordResetTokenRepository) DeleteByEmail(ctx context.Context, email string) error {
	querier := database.GetTx(ctx, p.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE email = $1`, email); err != nil {
		return apperrors.Wrap(err, "failed to delete password reset tokens")
	}
	return nil
}

// Delete removes one reset token and reports whether this call removed it.
func (p *PostgreSQLPasswordResetTokenRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := deleteOne(ctx, p.db, `DELETE FROM password_reset_tokens WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete password reset token")
	}
	return deleted, nil
}

// DeleteExpired deletes reset tokens that expired before olderThan.
func (p *PostgreSQLPasswordResetTokenRepository) DeleteExpired(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	return deleteExpired(ctx, p.db, passwordResetTokensTable, olderThan)
}

// CountExpired counts reset tokens that expired before olderThan.
func (p *PostgreSQLPasswordResetTokenRepository) CountExpired(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	return countExpired(ctx, p.db, passwordResetTokensTable, olderThan)
}
