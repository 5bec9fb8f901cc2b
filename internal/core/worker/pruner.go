package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/sentinel/internal/infra/storage"
	"github.com/vietddude/sentinel/internal/metrics"
)

// Pruner deletes stored alerts based on retention policy.
type Pruner struct {
	retention time.Duration
	alertRepo storage.AlertRepository
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, alertRepo storage.AlertRepository) *Pruner {
	return &Pruner{
		retention: retention,
		alertRepo: alertRepo,
		now:       time.Now,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check every 10% of the retention period, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	threshold := p.now().Add(-p.retention)

	n, err := p.alertRepo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		slog.Error("Failed to prune alerts", "error", err)
		return
	}
	if n > 0 {
		metrics.AlertsPruned.Add(float64(n))
		slog.Info("Pruned alerts", "count", n, "older_than", threshold)
	}
}
