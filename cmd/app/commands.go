package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/allisson/identity/cmd/app/commands"
	"github.com/allisson/identity/internal/app"
	"github.com/allisson/identity/internal/config"
)

func getCommands(version string) []*cli.Command {
	return []*cli.Command{
		serverCommand(version),
		migrateCommand(),
		cleanExpiredTokensCommand(),
		createRoleCommand(),
	}
}

// withContainer runs fn against a container built from the environment and
// releases the container's resources afterwards.
func withContainer(ctx context.Context, fn func(cfg *config.Config, container *app.Container) error) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	defer func() {
		if err := container.Shutdown(context.WithoutCancel(ctx)); err != nil {
			container.Logger().Error("failed to shutdown container", slog.Any("error", err))
		}
	}()
	return fn(cfg, container)
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func serverCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Serve the authentication API until interrupted",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return commands.RunServer(ctx, version)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the credential store schema migrations",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			})
		},
	}
}

func cleanExpiredTokensCommand() *cli.Command {
	return &cli.Command{
		Name:  "clean-expired-tokens",
		Usage: "Delete refresh, revoked, two-factor and reset tokens that have expired",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "days",
				Aliases: []string{"d"},
				Usage:   "Only delete tokens that expired more than this many days ago",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Count matching tokens without deleting them",
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withContainer(ctx, func(_ *config.Config, container *app.Container) error {
				housekeepingUseCase, err := container.HousekeepingUseCase()
				if err != nil {
					return err
				}
				return commands.RunCleanExpiredTokens(
					ctx,
					housekeepingUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			})
		},
	}
}

func createRoleCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-role",
		Usage: "Create a role and grant it permissions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Required: true,
				Usage:    "Unique role name (e.g., administrator)",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Human-readable description",
			},
			&cli.StringFlag{
				Name:    "permissions",
				Aliases: []string{"p"},
				Usage:   "Comma-separated permission names (e.g., roles:write,users:read)",
			},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withContainer(ctx, func(_ *config.Config, container *app.Container) error {
				roleUseCase, err := container.RoleUseCase()
				if err != nil {
					return err
				}
				return commands.RunCreateRole(
					ctx,
					roleUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("name"),
					cmd.String("description"),
					cmd.String("permissions"),
					cmd.String("format"),
				)
			})
		},
	}
}
