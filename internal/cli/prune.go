package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/sentinel/internal/infra/storage/postgres"
)

var pruneAlertsCmd = &cobra.Command{
	Use:   "prune-alerts [older_than]",
	Short: "Delete stored alerts older than a duration (e.g. 720h) from PostgreSQL",
	Args:  cobra.ExactArgs(1),
	Run:   runPruneAlerts,
}

func init() {
	rootCmd.AddCommand(pruneAlertsCmd)
}

func runPruneAlerts(cmd *cobra.Command, args []string) {
	age, err := time.ParseDuration(args[0])
	if err != nil || age <= 0 {
		fmt.Printf("Invalid duration: %q\n", args[0])
		os.Exit(1)
	}

	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("database.url is not configured")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	n, err := postgres.NewAlertRepo(db).DeleteOlderThan(ctx, time.Now().Add(-age))
	if err != nil {
		slog.Error("Failed to prune alerts", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d alerts older than %s\n", n, age)
}
