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

const twoFactorTokensTable = "two_factor_tokens"

// PostgreSQLTwoFactorTokenRepository implements TwoFactorToken persistence for PostgreSQL.
type PostgreSQLTwoFactorTokenRepository struct {
	db *sql.DB
}

// NewPostgreSQLTwoFactorTokenRepository creates a new PostgreSQL TwoFactorToken repository.
func NewPostgreSQLTwoFactorTokenRepository(db *sql.DB) *PostgreSQLTwoFactorTokenRepository {
	return &PostgreSQLTwoFactorTokenRepository{db: db}
}

// Create inserts a challenge. The user_id column is unique.
func (p *PostgreSQLTwoFactorTokenRepository) Create(ctx context.Context, token *authDomain.TwoFactorToken) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO two_factor_tokens (id, user_id, code, expires_at, created_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(ctx, query, token.ID, token.UserID, token.Code, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create two-factor token")
	}
	return nil
}

// GetByUserID retrieves the pending challenge of a user.
func (p *PostgreSQLTwoFactorTokenRepository) GetByUserID(
	ctx context.Context,
	userID int64,
) (*authDomain.TwoFactorToken, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, user_id, code, attempts, expires_at, created_at
			  FROM two_factor_tokens WHERE user_id = $1`

	var token authDomain.TwoFactorToken
	err := querier.QueryRowContext(ctx, query, userID).Scan(
		&token.ID,
		&token.UserID,
		&token.Code,
		&token.Attempts,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrTwoFactorTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get two-factor token")
	}
	return &token, nil
}

// DeleteByUserID removes any pending challenge of the user.
func (p *PostgreSQLTwoFactorTokenRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	querier := database.GetTx(ctx, p.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM two_factor_tokens WHERE user_id = $1`, userID); err != nil {
		return apperrors.Wrap(err, "failed to delete two-factor tokens")
	}
	return nil
}

// Delete removes one challenge and reports whether this call removed it.
func (p *PostgreSQLTwoFactorTokenRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := deleteOne(ctx, p.db, `DELETE FROM two_factor_tokens WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete two-factor token")
	}
	return deleted, nil
}

// RecordFailure increments the attempt counter in place and returns the new value.
func (p *PostgreSQLTwoFactorTokenRepository) RecordFailure(ctx context.Context, id uuid.UUID) (int, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE two_factor_tokens SET attempts = attempts + 1
			  WHERE id = $1 RETURNING attempts`

	var attempts int
	if err := querier.QueryRowContext(ctx, query, id).Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, authDomain.ErrTwoFactorTokenNotFound
		}
		return 0, apperrors.Wrap(err, "failed to record two-factor failure")
	}
	return attempts, nil
}

// DeleteExpired deletes challenges that expired before olderThan.
func (p *PostgreSQLTwoFactorTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return deleteExpired(ctx, p.db, twoFactorTokensTable, olderThan)
}

// CountExpired counts challenges that expired before olderThan.
func (p *PostgreSQLTwoFactorTokenRepository) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return countExpired(ctx, p.db, twoFactorTokensTable, olderThan)
}
