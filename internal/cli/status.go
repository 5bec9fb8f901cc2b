package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/sentinel/internal/server"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current status of every processing node",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	var report server.HealthReport
	err := newAPIClient(cfg.Server.Port).call(context.Background(), http.MethodGet, "/health/detailed", &report)
	if err != nil {
		slog.Error("Failed to fetch health report", "error", err)
		os.Exit(1)
	}

	fmt.Printf("System: %s   Active: %s   Snapshots: %d   Alerts: %d\n\n",
		report.SystemStatus, report.ActiveNode, report.Snapshots, report.Alerts)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NODE\tROLE\tSTATUS\tLATENCY\tAVG\tREQUESTS\tERROR RATE\tCPU\tMEM")
	for _, n := range report.Nodes {
		m := n.Metrics
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.1f%%\t%.0f%%\t%.0f%%\n",
			n.Name, n.Role, n.Status,
			m.Latency.Round(time.Millisecond), m.AverageLatency.Round(time.Millisecond),
			m.Requests, n.ErrorRate*100, m.Usage.CPU, m.Usage.Memory,
		)
	}
	_ = w.Flush()
}
