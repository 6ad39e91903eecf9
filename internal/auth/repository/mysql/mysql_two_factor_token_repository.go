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

const twoFactorTokensTable = "two_factor_tokens"

// MySQLTwoFactorTokenRepository implements TwoFactorToken persistence for MySQL.
type MySQLTwoFactorTokenRepository struct {
	db *sql.DB
}

// NewMySQLTwoFactorTokenRepository creates a new MySQL TwoFactorToken repository.
func NewMySQLTwoFactorTokenRepository(db *sql.DB) *MySQLTwoFactorTokenRepository {
	return &MySQLTwoFactorTokenRepository{db: db}
}

// Create inserts a challenge. The user_id column is unique.
func (m *MySQLTwoFactorTokenRepository) Create(ctx context.Context, token *authDomain.TwoFactorToken) error {
	querier := database.GetTx(ctx, m.db)

	id, err := uuidBytes(token.ID)
	if err != nil {
		return err
	}

	query := `INSERT INTO two_factor_tokens (id, user_id, code, expires_at, created_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, id, token.UserID, token.Code, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create two-factor token")
	}
	return nil
}

// GetByUserID retrieves the pending challenge of a user.
func (m *MySQLTwoFactorTokenRepository) GetByUserID(
	ctx context.Context,
	userID int64,
) (*authDomain.TwoFactorToken, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, user_id, code, attempts, expires_at, created_at
			  FROM two_factor_tokens WHERE user_id = ?`

	var (
		token authDomain.TwoFactorToken
		id    []byte
	)
	err := querier.QueryRowContext(ctx, query, userID).Scan(
		&id,
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
	if token.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteByUserID removes any pending challenge of the user.
func (m *MySQLTwoFactorTokenRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	querier := database.GetTx(ctx, m.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM two_factor_tokens WHERE user_id = ?`, userID); err != nil {
		return apperrors.Wrap(err, "failed to delete two-factor tokens")
	}
	return nil
}

// Delete removes one challenge and reports whether this call removed it.
func (m *MySQLTwoFactorTokenRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	b, err := uuidBytes(id)
	if err != nil {
		return false, err
	}
	deleted, err := deleteOne(ctx, m.db, `DELETE FROM two_factor_tokens WHERE id = ?`, b)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete two-factor token")
	}
	return deleted, nil
}

// RecordFailure increments the attempt counter and reads it back. Run it inside
// a transaction: the UPDATE row lock then keeps the read consistent with it.
func (m *MySQLTwoFactorTokenRepository) RecordFailure(ctx context.Context, id uuid.UUID) (int, error) {
	querier := database.GetTx(ctx, m.db)

	b, err := uuidBytes(id)
	if err != nil {
		return 0, err
	}

	result, err := querier.ExecContext(ctx, `UPDATE two_factor_tokens SET attempts = attempts + 1 WHERE id = ?`, b)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to record two-factor failure")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return 0, authDomain.ErrTwoFactorTokenNotFound
	}

	var attempts int
	if err := querier.QueryRowContext(ctx, `SELECT attempts FROM two_factor_tokens WHERE id = ?`, b).
		Scan(&attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, authDomain.ErrTwoFactorTokenNotFound
		}
		return 0, apperrors.Wrap(err, "failed to read two-factor attempts")
	}
	return attempts, nil
}

// DeleteExpired deletes challenges that expired before olderThan.
func (m *MySQLTwoFactorTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return deleteExpired(ctx, m.db, twoFactorTokensTable, olderThan)
}

// CountExpired counts challenges that expired before olderThan.
func (m *MySQLTwoFactorTokenRepository) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return countExpired(ctx, m.db, twoFactorTokensTable, olderThan)
}
