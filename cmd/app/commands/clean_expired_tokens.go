package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	authDomain "github.com/allisson/identity/internal/auth/domain"
	authUseCase "github.com/allisson/identity/internal/auth/usecase"
)

// RunCleanExpiredTokens deletes refresh tokens, denylist entries, two-factor
// challenges and reset tokens that expired more than days ago.
// Supports dry-run mode to preview deletion counts and both text/JSON output formats.
//
// Requirements: Database must be migrated and accessible.
func RunCleanExpiredTokens(
	ctx context.Context,
	housekeepingUseCase authUseCase.HousekeepingUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("cleaning expired tokens",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	result, err := housekeepingUseCase.CleanupExpired(ctx, days, dryRun)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}

	if format == "json" {
		if err := outputCleanExpiredJSON(writer, result, days, dryRun); err != nil {
			return err
		}
	} else {
		outputCleanExpiredText(writer, result, days, dryRun)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", result.Total()),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}

// outputCleanExpiredText outputs the result in human-readable text format.
func outputCleanExpiredText(writer io.Writer, result *authDomain.CleanupResult, days int, dryRun bool) {
	verb := "Successfully deleted"
	if dryRun {
		verb = "Dry-run mode: Would delete"
	}
	_, _ = fmt.Fprintf(writer, "%s %d expired token(s) older than %d day(s)\n", verb, result.Total(), days)
	_, _ = fmt.Fprintf(writer, "  refresh tokens:        %d\n", result.RefreshTokens)
	_, _ = fmt.Fprintf(writer, "  revoked access tokens: %d\n", result.RevokedTokens)
	_, _ = fmt.Fprintf(writer, "  two-factor challenges: %d\n", result.TwoFactorTokens)
	_, _ = fmt.Fprintf(writer, "  password reset tokens: %d\n", result.PasswordResetTokens)
}

// outputCleanExpiredJSON outputs the result in JSON format for machine consumption.
func outputCleanExpiredJSON(writer io.Writer, result *authDomain.CleanupResult, days int, dryRun bool) error {
	return writeJSON(writer, map[string]any{
		"count":                 result.Total(),
		"refresh_tokens":        result.RefreshTokens,
		"revoked_tokens":        result.RevokedTokens,
		"two_factor_tokens":     result.TwoFactorTokens,
		"password_reset_tokens": result.PasswordResetTokens,
		"days":                  days,
		"dry_run":               dryRun,
	})
}
