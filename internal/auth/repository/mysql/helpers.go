// Package mysql implements the credential store on MySQL. UUIDs are stored as
// BINARY(16) and the DSN must set parseTime=true.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
)

const duplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == duplicateEntry
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

func uuidBytes(id uuid.UUID) ([]byte, error) {
	b, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal uuid")
	}
	return b, nil
}

func parseUUID(b []byte) (uuid.UUID, error) {
	var id uuid.UUID
	if err := id.UnmarshalBinary(b); err != nil {
		return uuid.Nil, apperrors.Wrap(err, "failed to unmarshal uuid")
	}
	return id, nil
}

// deleteExpired and countExpired back the ExpiredTokenRepository methods of every
// token table. table is always a package constant, never user input.
func deleteExpired(ctx context.Context, db *sql.DB, table string, olderThan time.Time) (int64, error) {
	if olderThan.IsZero() {
		return 0, apperrors.New("olderThan timestamp cannot be zero")
	}

	querier := database.GetTx(ctx, db)

	result, err := querier.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at < ?`, olderThan)
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
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE expires_at < ?`, olderThan).
		Scan(&count)
	if err != nil {
		return 0, apperrors.Wrapf(err, "failed to count expired rows in %s", table)
	}
	return count, nil
}

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

func loadRoles(ctx context.Context, db *sql.DB, userID int64) ([]authDomain.Role, error) {
	querier := database.GetTx(ctx, db)

	query := `SELECT r.id, r.name, r.description, p.id, p.name
			  FROM user_roles ur
			  JOIN roles r ON r.id = ur.role_id
			  LEFT JOIN role_permissions rp ON rp.role_id = r.id
			  LEFT JOIN permissions p ON p.id = rp.permission_id
			  WHERE ur.user_id = ?
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
