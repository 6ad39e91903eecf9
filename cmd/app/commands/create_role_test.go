package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	usecaseMocks "github.com/allisson/identity/internal/auth/usecase/mocks"
	apperrors "github.com/allisson/identity/internal/errors"
)

func TestRunCreateRole(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	role := &authDomain.Role{
		ID:          7,
		Name:        "administrator",
		Description: "Full access",
		Permissions: []authDomain.Permission{
			{ID: 1, Name: "roles:write"},
			{ID: 2, Name: "users:read"},
		},
	}

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := &usecaseMocks.MockRoleUseCase{}
		mockUseCase.On("Create", ctx, "administrator", "Full access", []string{"roles:write", "users:read"}).
			Return(role, nil)

		var out bytes.Buffer
		err := RunCreateRole(
			ctx, mockUseCase, logger, &out,
			"administrator", "Full access", "roles:write, users:read,", "text",
		)

		require.NoError(t, err)
		require.Contains(t, out.String(), "name:        administrator")
		require.Contains(t, out.String(), "permissions: roles:write, users:read")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		mockUseCase := &usecaseMocks.MockRoleUseCase{}
		mockUseCase.On("Create", ctx, "administrator", "", mock.Anything).Return(role, nil)

		var out bytes.Buffer
		err := RunCreateRole(ctx, mockUseCase, logger, &out, "administrator", "", "", "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"id": 7`)
		require.Contains(t, out.String(), `"roles:write"`)
	})

	t.Run("blank-name", func(t *testing.T) {
		mockUseCase := &usecaseMocks.MockRoleUseCase{}
		err := RunCreateRole(ctx, mockUseCase, logger, &bytes.Buffer{}, "  ", "", "", "text")

		require.Error(t, err)
		mockUseCase.AssertNotCalled(t, "Create")
	})

	t.Run("already-exists", func(t *testing.T) {
		mockUseCase := &usecaseMocks.MockRoleUseCase{}
		mockUseCase.On("Create", ctx, "administrator", "", mock.Anything).
			Return(nil, authDomain.ErrRoleAlreadyExists)

		err := RunCreateRole(ctx, mockUseCase, logger, &bytes.Buffer{}, "administrator", "", "", "text")

		require.Error(t, err)
		require.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestSplitList(t *testing.T) {
	require.Nil(t, splitList(""))
	require.Nil(t, splitList("   "))
	require.Equal(t, []string{"a", "b"}, splitList(" a ,, b ,"))
}
