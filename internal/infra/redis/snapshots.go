package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/rollback"
)

// SnapshotArchive stores the rollback history under a single Redis key.
type SnapshotArchive struct {
	client *Client
}

// NewSnapshotArchive creates a Redis-backed snapshot archive.
func NewSnapshotArchive(client *Client) *SnapshotArchive {
	return &SnapshotArchive{client: client}
}

// Store replaces the archived history.
func (a *SnapshotArchive) Store(ctx context.Context, history []domain.Snapshot) error {
	data, err := rollback.EncodeHistory(history)
	if err != nil {
		return err
	}
	if err := a.client.rdb.Set(ctx, a.client.snapshotsKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store snapshots: %w", err)
	}
	return nil
}

// Load returns the archived history, or nil when nothing was stored.
func (a *SnapshotArchive) Load(ctx context.Context) ([]domain.Snapshot, error) {
	data, err := a.client.rdb.Get(ctx, a.client.snapshotsKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	return rollback.DecodeHistory(data)
}
