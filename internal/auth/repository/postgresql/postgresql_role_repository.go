package postgresql

import (
	"context"
	"database/sql"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
)

// PostgreSQLRoleRepository implements Role persistence for PostgreSQL.
type PostgreSQLRoleRepository struct {
	db *sql.DB
}

// NewPostgreSQLRoleRepository creates a new PostgreSQL Role repository.
func NewPostgreSQLRoleRepository(db *sql.DB) *PostgreSQLRoleRepository {
	return &PostgreSQLRoleRepository{db: db}
}

// GetByName retrieves a role with its permissions.
func (p *PostgreSQLRoleRepository) GetByName(ctx context.Context, name string) (*authDomain.Role, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT r.id, r.name, r.description, p.id, p.name
			  FROM roles r
			  LEFT JOIN role_permissions rp ON rp.role_id = r.id
			  LEFT JOIN permissions p ON p.id = rp.permission_id
			  WHERE r.name = $1
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
func (p *PostgreSQLRoleRepository) Create(ctx context.Context, role *authDomain.Role) error {
	querier := database.GetTx(ctx, p.db)

	err := querier.QueryRowContext(
		ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING id`,
		role.Name,
		role.Description,
	).Scan(&role.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return authDomain.ErrRoleAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create role")
	}

	for i := range role.Permissions {
		perm := &role.Permissions[i]
		err := querier.QueryRowContext(
			ctx,
			`INSERT INTO permissions (name) VALUES ($1)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			perm.Name,
		).Scan(&perm.ID)
		if err != nil {
			return apperrors.Wrap(err, "failed to upsert permission")
		}

		_, err = querier.ExecContext(
			ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			role.ID,
			perm.ID,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to grant permission")
		}
	}
	return nil
}
