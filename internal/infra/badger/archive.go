// Package badger keeps the snapshot history in an embedded BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/rollback"
)

var historyKey = []byte("snapshots/history")

var _ rollback.Archive = (*SnapshotArchive)(nil)

// SnapshotArchive implements rollback.Archive using BadgerDB.
type SnapshotArchive struct {
	db *badger.DB
}

// Open opens (or creates) an archive at path.
func Open(path string) (*SnapshotArchive, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	return open(opts)
}

// OpenInMemory opens an archive that lives only in memory.
func OpenInMemory() (*SnapshotArchive, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts)
}

func open(opts badger.Options) (*SnapshotArchive, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &SnapshotArchive{db: db}, nil
}

// Store replaces the archived history.
func (a *SnapshotArchive) Store(ctx context.Context, history []domain.Snapshot) error {
	data, err := rollback.EncodeHistory(history)
	if err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(historyKey, data)
	})
}

// Load returns the archived history, or nil when nothing was stored.
func (a *SnapshotArchive) Load(ctx context.Context) ([]domain.Snapshot, error) {
	var data []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(historyKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	return rollback.DecodeHistory(data)
}

// Close closes the underlying database.
func (a *SnapshotArchive) Close() error {
	return a.db.Close()
}
