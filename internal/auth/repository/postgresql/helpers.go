// Package postgresql implements the credential store on PostgreSQL.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// deleteExpired and countExpired back the ExpiredTokenRepository methods of every
// token table. table is always a package constant, never user input.
func deleteExpired(ctx context.Context, db *sql.DB, table string, olderThan time.Time) (int64, error) {
	if olderThan.IsZero() {
		return 0, apperrors.New("olderThan timestamp cannot be zero")
	}

	querier := database.GetTx(ctx, db)

	result, err := querier.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at < $1`, olderThan)
	if err != nil {
		return 0, apperrors.Wrapf(err, "failed to delete expired rows from %s", table)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return rowsAffected, nil
}

func countExpired(ctx context.Context, db *sql.DB, table string, olderThan time.Time) (int64, error) {
	if olderThan.IsZero() {
		return 0, apperrors.New("olderThan timestamp cannot be zero")
	}

	querier := database.GetTx(ctx, db)

	var count int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE expires_at < $1`, olderThan).
		Scan(&count)
	if err != nil {
		return 0, apperrors.Wrapf(err, "failed to count expired rows in %s", table)
	}
	return count, nil
}

// deleteOne runs a single-row delete and reports whether a row was removed.
func deleteOne(ctx context.Context, db *sql.DB, query string, arg any) (bool, error) {
	querier := database.GetTx(ctx, db)

	result, err := querier.ExecContext(ctx, query, arg)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	return n > 0, nil
}

// loadRoles fetches the roles and permissions assigned to a user.
func loadRoles(ctx context.Context, db *sql.DB, userID int64) ([]authDomain.Role, error) {
	querier := database.GetTx(ctx, db)

	query := `SELECT r.id, r.name, r.description, p.id, p.name
			  FROM user_roles ur
			  JOIN roles r ON r.id = ur.role_id
			  LEFT JOIN role_permissions rp ON rp.role_id = r.id
			  LEFT JOIN permissions p ON p.id = rp.permission_id
			  WHERE ur.user_id = $1
			  ORDER BY r.id, p.name`

	rows, err := querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load user roles")
	}
	defer func() { _ = rows.Close() }()

	return scanRoleRows(rows)
}

// scanRoleRows folds (role, permission) rows ordered by role id into roles.
func scanRoleRows(rows *sql.Rows) ([]authDomain.Role, error) {
	roles := make([]authDomain.Role, 0)
	for rows.Next() {
		var (
			role     authDomain.Role
			permID   sql.NullInt64
			permName sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &permID, &permName); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan role")
		}

		if len(roles) == 0 || roles[len(roles)-1].ID != role.ID {
			role.Permissions = make([]authDomain.Permission, 0)
			roles = append(roles, role)
		}
		if permID.Valid {
			last := &roles[len(roles)-1]
			last.Permissions = append(last.Permissions, authDomain.Permission{ID: permID.Int64, Name: permName.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate roles")
	}
	return roles, nil
}
