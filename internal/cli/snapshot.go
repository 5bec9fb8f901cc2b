package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/sentinel/internal/core/domain"
)

var listSnapshots bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save a state snapshot, or list the retained ones with --list",
	Run:   runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&listSnapshots, "list", false, "list retained snapshots instead of saving one")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	client := newAPIClient(cfg.Server.Port)
	ctx := context.Background()

	if listSnapshots {
		var infos []domain.SnapshotInfo
		if err := client.call(ctx, http.MethodGet, "/snapshots", &infos); err != nil {
			slog.Error("Failed to list snapshots", "error", err)
			os.Exit(1)
		}
		printSnapshots(infos)
		return
	}

	var info domain.SnapshotInfo
	if err := client.call(ctx, http.MethodPost, "/snapshots", &info); err != nil {
		slog.Error("Failed to save snapshot", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Saved snapshot %s at %s (%d bytes)\n", info.ID, info.Timestamp.Format(time.RFC3339), info.Bytes)
}

func printSnapshots(infos []domain.SnapshotInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tTIMESTAMP\tCOLLABORATORS\tBYTES")
	for _, s := range infos {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			s.ID, s.Timestamp.Format(time.RFC3339), strings.Join(s.Collaborators, ","), s.Bytes)
	}
	_ = w.Flush()
}
