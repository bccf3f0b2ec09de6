package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/onetime/internal/secret/repository"
)

// RunCleanExpiredSecrets deletes secrets whose TTL has elapsed. Expired records
// are already unreadable through the API; this reclaims their storage.
// Supports dry-run mode to preview the deletion count and both text/JSON output formats.
func RunCleanExpiredSecrets(
	ctx context.Context,
	store repository.SecretStore,
	logger *slog.Logger,
	out io.Writer,
	dryRun bool,
	format string,
) error {
	logger.Info("cleaning expired secrets", slog.Bool("dry_run", dryRun))

	count, err := store.CleanupExpired(ctx, dryRun)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired secrets: %w", err)
	}

	// Output result based on format
	if format == "json" {
		outputCleanExpiredJSON(out, count, dryRun)
	} else {
		outputCleanExpiredText(out, count, dryRun)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}

// outputCleanExpiredText outputs the result in human-readable text format.
func outputCleanExpiredText(out io.Writer, count int64, dryRun bool) {
	if dryRun {
		fmt.Fprintf(out, "Dry-run mode: Would delete %d expired secret(s)\n", count)
	} else {
		fmt.Fprintf(out, "Successfully deleted %d expired secret(s)\n", count)
	}
}

// outputCleanExpiredJSON outputs the result in JSON format for machine consumption.
func outputCleanExpiredJSON(out io.Writer, count int64, dryRun bool) {
	result := map[string]interface{}{
		"count":   count,
		"dry_run": dryRun,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(out, string(jsonBytes))
}
