package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	authUseCase "github.com/allisson/identity/internal/auth/usecase"
)

// RunCreateRole creates a role with the given permissions and prints it.
// Used to bootstrap the default role and an administrator role before the first
// registration.
func RunCreateRole(
	ctx context.Context,
	roleUseCase authUseCase.RoleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	name string,
	description string,
	permissions string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("role name is required")
	}

	logger.Info("creating role", slog.String("name", name))

	role, err := roleUseCase.Create(ctx, name, description, splitList(permissions))
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	if format == "json" {
		if err := outputRoleJSON(writer, role); err != nil {
			return err
		}
	} else {
		outputRoleText(writer, role)
	}

	logger.Info("role created", slog.Int64("id", role.ID), slog.String("name", role.Name))
	return nil
}

func permissionNames(role *authDomain.Role) []string {
	names := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		names = append(names, p.Name)
	}
	return names
}

func outputRoleText(writer io.Writer, role *authDomain.Role) {
	_, _ = fmt.Fprintf(writer, "Role created successfully\n")
	_, _ = fmt.Fprintf(writer, "  id:          %d\n", role.ID)
	_, _ = fmt.Fprintf(writer, "  name:        %s\n", role.Name)
	if role.Description != "" {
		_, _ = fmt.Fprintf(writer, "  description: %s\n", role.Description)
	}
	_, _ = fmt.Fprintf(writer, "  permissions: %s\n", strings.Join(permissionNames(role), ", "))
}

func outputRoleJSON(writer io.Writer, role *authDomain.Role) error {
	return writeJSON(writer, map[string]any{
		"id":          role.ID,
		"name":        role.Name,
		"description": role.Description,
		"permissions": permissionNames(role),
	})
}
