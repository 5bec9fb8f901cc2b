package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// SnapshotSaver is the part of the rollback manager the snapshotter drives.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context) (domain.SnapshotInfo, error)
}

// Snapshotter saves a snapshot on a fixed interval.
type Snapshotter struct {
	interval time.Duration
	saver    SnapshotSaver
}

// NewSnapshotter creates a new Snapshotter worker.
func NewSnapshotter(interval time.Duration, saver SnapshotSaver) *Snapshotter {
	return &Snapshotter{interval: interval, saver: saver}
}

// Start runs the snapshot loop.
func (s *Snapshotter) Start(ctx context.Context) {
	if s.interval <= 0 {
		return // Periodic snapshots disabled
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.saver.SaveSnapshot(ctx); err != nil {
				slog.Error("Scheduled snapshot failed", "error", err)
			}
		}
	}
}
