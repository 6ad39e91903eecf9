package usecase

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	"github.com/allisson/identity/internal/database"
	apperrors "github.com/allisson/identity/internal/errors"
)

// roleUseCase implements RoleUseCase.
type roleUseCase struct {
	txManager database.TxManager
	roleRepo  RoleRepository
	logger    *slog.Logger
}

// Create stores a role granting the named permissions. Blank and repeated
// permission names are dropped.
func (r *roleUseCase) Create(
	ctx context.Context,
	name, description string,
	permissions []string,
) (*authDomain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "role name is required")
	}

	names := make([]string, 0, len(permissions))
	for _, p := range permissions {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)

	role := &authDomain.Role{
		Name:        name,
		Description: description,
		Permissions: make([]authDomain.Permission, 0, len(names)),
	}
	for _, n := range names {
		role.Permissions = append(role.Permissions, authDomain.Permission{Name: n})
	}

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		return r.roleRepo.Create(ctx, role)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("role created", slog.String("role", role.Name), slog.Int("permissions", len(role.Permissions)))
	return role, nil
}

// NewRoleUseCase creates a new RoleUseCase with the provided dependencies.
func NewRoleUseCase(txManager database.TxManager, roleRepo RoleRepository, logger *slog.Logger) RoleUseCase {
	return &roleUseCase{
		txManager: txManager,
		roleRepo:  roleRepo,
		logger:    logger,
	}
}
