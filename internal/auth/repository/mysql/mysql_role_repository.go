package mysql

import (
	"context"
	"database/sql"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
)

// MySQLRoleRepository implements Role persistence for MySQL.
type MySQLRoleRepository struct {
	db *sql.DB
}

// NewMySQLRoleRepository creates a new MySQL Role repository.
func NewMySQLRoleRepository(db *sql.DB) *MySQLRoleRepository {
	return &MySQLRoleRepository{db: db}
}

// GetByName retrieves a role with its permissions.
func (m *MySQLRoleRepository) GetByName(ctx context.Context, name string) (*authDomain.Role, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT r.id, r.name, r.description, p.id, p.name
			  FROM roles r
			  LEFT JOIN role_permissions rp ON rp.role_id = r.id
			  LEFT JOIN permissions p ON p.id = rp.permission_id
			  WHERE r.name = ?
			  ORDER BY p.name`

	rows, err := querier.QueryContext(ctx, query, name)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get role")
	}
	defer func() { _ = rows.Close() }()

	roles, err := scanRoleRows(rows)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, authDomain.ErrRoleNotFound
	}
	return &roles[0], nil
}

// Create inserts the role, upserts its permissions by name, and grants them.
func (m *MySQLRoleRepository) Create(ctx context.Context, role *authDomain.Role) error {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(
		ctx,
		`INSERT INTO roles (name, description) VALUES (?, ?)`,
		role.Name,
		role.Description,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return authDomain.ErrRoleAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create role")
	}
	if role.ID, err = result.LastInsertId(); err != nil {
		return apperrors.Wrap(err, "failed to get role id")
	}

	for i := range role.Permissions {
		perm := &role.Permissions[i]

		// LAST_INSERT_ID(id) makes an existing row report its id as the insert id.
		result, err := querier.ExecContext(
			ctx,
			`INSERT INTO permissions (name) VALUES (?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`,
			perm.Name,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to upsert permission")
		}
		if perm.ID, err = result.LastInsertId(); err != nil {
			return apperrors.Wrap(err, "failed to get permission id")
		}

		_, err = querier.ExecContext(
			ctx,
			`INSERT IGNORE INTO role_permissions (role_id, permission_id) VALUES (?, ?)`,
			role.ID,
			perm.ID,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to grant permission")
		}
	}
	return nil
}
