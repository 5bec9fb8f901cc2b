package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/sentinel/internal/core/domain"
)

var rollbackTo string

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll collaborator state back to the previous snapshot, or to --to RFC3339",
	Run:   runRollback,
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackTo, "to", "", "restore the latest snapshot taken at or before this RFC3339 time")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	path := "/rollback/previous"
	if rollbackTo != "" {
		if _, err := time.Parse(time.RFC3339, rollbackTo); err != nil {
			fmt.Printf("Invalid timestamp: %v\n", err)
			os.Exit(1)
		}
		path = "/rollback?ts=" + url.QueryEscape(rollbackTo)
	}

	var resp struct {
		RolledBack bool                  `json:"rolled_back"`
		History    []domain.SnapshotInfo `json:"history"`
	}
	if err := newAPIClient(cfg.Server.Port).call(context.Background(), http.MethodPost, path, &resp); err != nil {
		slog.Error("Rollback failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("Rollback complete. Remaining snapshots:")
	printSnapshots(resp.History)
}
