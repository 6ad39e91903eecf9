package postgresql

import (
	"context"
	"database/sql"
	"time"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
)

const revokedTokensTable = "revoked_tokens"

// PostgreSQLRevokedTokenRepository implements the access token denylist for PostgreSQL.
type PostgreSQLRevokedTokenRepository struct {
	db *sql.DB
}

// NewPostgreSQLRevokedTokenRepository creates a new PostgreSQL RevokedToken repository.
func NewPostgreSQLRevokedTokenRepository(db *sql.DB) *PostgreSQLRevokedTokenRepository {
	return &PostgreSQLRevokedTokenRepository{db: db}
}

// Create inserts a denylist entry; an existing entry for the same hash is kept.
func (p *PostgreSQLRevokedTokenRepository) Create(ctx context.Context, token *authDomain.RevokedToken) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO revoked_tokens (id, token_hash, expires_at, revoked_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (token_hash) DO NOTHING`

	_, err := querier.ExecContext(ctx, query, token.ID, token.TokenHash, token.ExpiresAt, token.RevokedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to revoke token")
	}
	return nil
}

// ExistsByTokenHash reports whether the hash is denylisted.
func (p *PostgreSQLRevokedTokenRepository) ExistsByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	var exists bool
	err := querier.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_hash = $1)`,
		tokenHash,
	).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check revoked token")
	}
	return exists, nil
}

// DeleteExpired deletes denylist entries whose access token expired before olderThan.
func (p *PostgreSQLRevokedTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return deleteExpired(ctx, p.db, revokedTokensTable, olderThan)
}

// CountExpired counts denylist entries whose access token expired before olderThan.
func (p *PostgreSQLRevokedTokenRepository) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return countExpired(ctx, p.db, revokedTokensTable, olderThan)
}
