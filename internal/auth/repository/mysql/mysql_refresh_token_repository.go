package mysql

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

// MySQLRefreshTokenRepository implements RefreshToken persistence for MySQL.
type MySQLRefreshTokenRepository struct {
	db *sql.DB
}

// NewMySQLRefreshTokenRepository creates a new MySQL RefreshToken repository.
func NewMySQLRefreshTokenRepository(db *sql.DB) *MySQLRefreshTokenRepository {
	return &MySQLRefreshTokenRepository{db: db}
}

// Create inserts a refresh token record.
func (m *MySQLRefreshTokenRepository) Create(ctx context.Context, token *authDomain.RefreshTokenRecord) error {
	querier := database.GetTx(ctx, m.db)

	id, err := uuidBytes(token.ID)
	if err != nil {
		return err
	}

	query := `INSERT INTO refresh_tokens (id, token_hash, user_id, expires_at, created_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, id, token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create refresh token")
	}
	return nil
}

// GetByTokenHash retrieves a refresh token by the SHA-256 hash of its value.
func (m *MySQLRefreshTokenRepository) GetByTokenHash(
	ctx context.Context,
	tokenHash string,
) (*authDomain.RefreshTokenRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, token_hash, user_id, expires_at, created_at
			  FROM refresh_tokens WHERE token_hash = ?`

	var (
		token authDomain.RefreshTokenRecord
		id    []byte
	)
	err := querier.QueryRowContext(ctx, query, tokenHash).Scan(
		&id,
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
	if token.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteByUserID removes every refresh token of the user.
func (m *MySQLRefreshTokenRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	querier := database.GetTx(ctx, m.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID); err != nil {
		return apperrors.Wrap(err, "failed to delete refresh tokens")
	}
	return nil
}

// DeleteByTokenHash removes the matching refresh token if it still exists.
func (m *MySQLRefreshTokenRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if _, err := deleteOne(ctx, m.db, `DELETE FROM refresh_tokens WHERE token_hash = ?`, tokenHash); err != nil {
		return apperrors.Wrap(err, "failed to delete refresh token")
	}
	return nil
}

// DeleteExpired deletes refresh tokens that expired before olderThan.
func (m *MySQLRefreshTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return deleteExpired(ctx, m.db, refreshTokensTable, olderThan)
}

// CountExpired counts refresh tokens that expired before olderThan.
func (m *MySQLRefreshTokenRepository) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return countExpired(ctx, m.db, refreshTokensTable, olderThan)
}
