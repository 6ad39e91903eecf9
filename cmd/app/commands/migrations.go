package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationsPaths maps DB_DRIVER to the directory holding its migrations.
var migrationsPaths = map[string]string{
	"postgres": "file://migrations/postgresql",
	"mysql":    "file://migrations/mysql",
}

// RunMigrations applies all pending migrations for the configured driver.
// Returns nil when the schema is already up to date.
func RunMigrations(logger *slog.Logger, driver, connectionString string) error {
	migrationsPath, ok := migrationsPaths[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver: %s", driver)
	}

	logger.Info("running database migrations", slog.String("driver", driver))

	m, err := migrate.New(migrationsPath, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}
