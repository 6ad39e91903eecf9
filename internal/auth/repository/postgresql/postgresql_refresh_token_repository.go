package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
)

const refreshTokensTable = "refresh_tokens"

// PostgreSQLRefreshTokenRepository implements RefreshToken persistence for PostgreSQL.
type PostgreSQLRefreshTokenRepository struct {
	db *sql.DB
}

// NewPostgreSQLRefreshTokenRepository creates a new PostgreSQL RefreshToken repository.
func NewPostgreSQLRefreshTokenRepository(db *sql.DB) *PostgreSQLRefreshTokenRepository {
	return &PostgreSQLRefreshTokenRepository{db: db}
}

// Create inserts a refresh token record.
func (p *PostgreSQLRefreshTokenRepository) Create(ctx context.Context, token *authDomain.RefreshTokenRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO refresh_tokens (id, token_hash, user_id, expires_at, created_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(ctx, query, token.ID, token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create refresh token")
	}
	return nil
}

// GetByTokenHash retrieves a refresh token by the SHA-256 hash of its value.
func (p *PostgreSQLRefreshTokenRepository) GetByTokenHash(
	ctx context.Context,
	tokenHash string,
) (*authDomain.RefreshTokenRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, token_hash, user_id, expires_at, created_at
			  FROM refresh_tokens WHERE token_hash = $1`

	var token authDomain.RefreshTokenRecord
	err := querier.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.TokenHash,
		&token.UserID,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrRefreshTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get refresh token")
	}
	return &token, nil
}

// DeleteByUserID removes every refresh token of the user.
func (p *PostgreSQLRefreshTokenRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	querier := database.GetTx(ctx, p.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return apperrors.Wrap(err, "failed to delete refresh tokens")
	}
	return nil
}

// DeleteByTokenHash removes the matching refresh token if it still exists.
func (p *PostgreSQLRefreshTokenRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if _, err := deleteOne(ctx, p.db, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return apperrors.Wrap(err, "failed to delete refresh token")
	}
	return nil
}

// DeleteExpired deletes refresh tokens that expired before olderThan.
func (p *PostgreSQLRefreshTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return deleteExpired(ctx, p.db, refreshTokensTable, olderThan)
}

// CountExpired counts refresh tokens that expired before olderThan.
func (p *PostgreSQLRefreshTokenRepository) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return countExpired(ctx, p.db, refreshTokensTable, olderThan)
}
