package mysql

import (
	"context"
	"database/sql"
	"time"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
)

const revokedTokensTable = "revoked_tokens"

// MySQLRevokedTokenRepository implements the access token denylist for MySQL.
type MySQLRevokedTokenRepository struct {
	db *sql.DB
}

// NewMySQLRevokedTokenRepository creates a new MySQL RevokedToken repository.
func NewMySQLRevokedTokenRepository(db *sql.DB) *MySQLRevokedTokenRepository {
	return &MySQLRevokedTokenRepository{db: db}
}

// Create inserts a denylist entry; an existing entry for the same hash is kept.
func (m *MySQLRevokedTokenRepository) Create(ctx context.Context, token *authDomain.RevokedToken) error {
	querier := database.GetTx(ctx, m.db)

	id, err := uuidBytes(token.ID)
	if err != nil {
		return err
	}

	query := `INSERT IGNORE INTO revoked_tokens (id, token_hash, expires_at, revoked_at)
			  VALUES (?, ?, ?, ?)`

	if _, err := querier.ExecContext(ctx, query, id, token.TokenHash, token.ExpiresAt, token.RevokedAt); err != nil {
		return apperrors.Wrap(err, "failed to revoke token")
	}
	return nil
}

// ExistsByTokenHash reports whether the hash is denylisted.
func (m *MySQLRevokedTokenRepository) ExistsByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	var exists bool
	err := querier.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_hash = ?)`,
		tokenHash,
	).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check revoked token")
	}
	return exists, nil
}

// DeleteExpired deletes denylist entries whose access token expired before olderThan.
func (m *MySQLRevokedTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return deleteExpired(ctx, m.db, revokedTokensTable, olderThan)
}

// CountExpired counts denylist entries whose access token expired before olderThan.
func (m *MySQLRevokedTokenRepository) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return countExpired(ctx, m.db, revokedTokensTable, olderThan)
}
