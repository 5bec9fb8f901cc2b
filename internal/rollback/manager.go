// Package rollback keeps a bounded history of collaborator state snapshots
// and restores earlier ones on demand.
package rollback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/metrics"
)

// DefaultMaxHistory is the snapshot history length when none is configured.
const DefaultMaxHistory = 10

var (
	// ErrMissingState is returned when a snapshot lacks a registered collaborator's blob.
	ErrMissingState = errors.New("snapshot is missing collaborator state")

	// ErrDuplicateCollaborator is returned when two collaborators share a name.
	ErrDuplicateCollaborator = errors.New("duplicate collaborator")
)

// Collaborator is a component whose state can be snapshotted.
type Collaborator interface {
	Name() string
	// ExportState returns the current state. The manager copies the result,
	// so the collaborator may reuse the buffer.
	ExportState(ctx context.Context) ([]byte, error)
	// ImportState replaces the current state. An ImportState that returns an
	// error must leave the state unchanged: a failed rollback restores only
	// the collaborators that imported successfully.
	ImportState(ctx context.Context, state []byte) error
}

// StateValidator is implemented by collaborators that can check a blob
// before it is imported.
type StateValidator interface {
	ValidateState(ctx context.Context, state []byte) error
}

// Archive persists the snapshot history outside the process.
type Archive interface {
	Store(ctx context.Context, history []domain.Snapshot) error
	Load(ctx context.Context) ([]domain.Snapshot, error)
}

// Manager owns the snapshot history. A single mutex serializes saves and
// rollbacks.
type Manager struct {
	mu            sync.Mutex
	maxHistory    int
	collaborators []Collaborator
	history       []domain.Snapshot
	archive       Archive
	log           *slog.Logger
	now           func() time.Time
}

// NewManager creates a manager. maxHistory values below 2 fall back to the default.
func NewManager(maxHistory int, archive Archive, collaborators ...Collaborator) (*Manager, error) {
	if maxHistory < 2 {
		maxHistory = DefaultMaxHistory
	}
	seen := make(map[string]bool, len(collaborators))
	for _, c := range collaborators {
		if seen[c.Name()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCollaborator, c.Name())
		}
		seen[c.Name()] = true
	}
	return &Manager{
		maxHistory:    maxHistory,
		collaborators: collaborators,
		archive:       archive,
		log:           slog.Default().With("component", "rollback"),
		now:           time.Now,
	}, nil
}

// SetLogger replaces the manager's logger.
func (m *Manager) SetLogger(l *slog.Logger) {
	m.log = l.With("component", "rollback")
}

// Restore replaces the in-memory history with the archived one.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.archive == nil {
		return 0, nil
	}
	history, err := m.archive.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot archive: %w", err)
	}
	if len(history) > m.maxHistory {
		history = history[len(history)-m.maxHistory:]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = history
	metrics.SnapshotHistory.Set(float64(len(m.history)))
	return len(history), nil
}

// SaveSnapshot exports every collaborator and appends the snapshot, evicting
// the oldest when the history is full. Nothing is appended if any export fails.
func (m *Manager) SaveSnapshot(ctx context.Context) (domain.SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	states, err := m.exportAll(ctx)
	if err != nil {
		return domain.SnapshotInfo{}, err
	}

	snap := domain.Snapshot{
		ID:        uuid.NewString(),
		Timestamp: m.now(),
		States:    states,
	}
	m.history = append(m.history, snap)
	if over := len(m.history) - m.maxHistory; over > 0 {
		m.history = append([]domain.Snapshot(nil), m.history[over:]...)
	}

	metrics.SnapshotsSaved.Inc()
	m.persist(ctx)
	m.log.Info("Snapshot saved", "id", snap.ID, "history", len(m.history))
	return snap.Info(), nil
}

// RollbackToPrevious restores the snapshot before the most recent one and
// drops the most recent. It reports false when fewer than two snapshots exist.
func (m *Manager) RollbackToPrevious(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) < 2 {
		metrics.Rollbacks.WithLabelValues("previous", "insufficient_history").Inc()
		m.log.Warn("Not enough snapshots to roll back", "history", len(m.history))
		return false, nil
	}

	target := m.history[len(m.history)-2]
	if err := m.importAll(ctx, target); err != nil {
		metrics.Rollbacks.WithLabelValues("previous", "error").Inc()
		return false, fmt.Errorf("rollback to %s: %w", target.ID, err)
	}

	m.history = m.history[:len(m.history)-1]
	metrics.Rollbacks.WithLabelValues("previous", "success").Inc()
	m.persist(ctx)
	m.log.Info("Rolled back to previous snapshot", "id", target.ID, "timestamp", target.Timestamp)
	return true, nil
}

// RollbackToTimestamp restores the most recent snapshot taken at or before ts
// and drops every snapshot after it. It reports false when none qualifies.
func (m *Manager) RollbackToTimestamp(ctx context.Context, ts time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := len(m.history) - 1; i >= 0; i-- {
		if !m.history[i].Timestamp.After(ts) {
			idx = i
			break
		}
	}
	if idx < 0 {
		metrics.Rollbacks.WithLabelValues("timestamp", "not_found").Inc()
		m.log.Warn("No snapshot at or before timestamp", "timestamp", ts)
		return false, nil
	}

	target := m.history[idx]
	if err := m.importAll(ctx, target); err != nil {
		metrics.Rollbacks.WithLabelValues("timestamp", "error").Inc()
		return false, fmt.Errorf("rollback to %s: %w", target.ID, err)
	}

	m.history = m.history[:idx+1]
	metrics.Rollbacks.WithLabelValues("timestamp", "success").Inc()
	m.persist(ctx)
	m.log.Info("Rolled back to snapshot", "id", target.ID, "timestamp", target.Timestamp)
	return true, nil
}

// History returns snapshot metadata, oldest first.
func (m *Manager) History() []domain.SnapshotInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.SnapshotInfo, len(m.history))
	for i, s := range m.history {
		out[i] = s.Info()
	}
	return out
}

// Snapshots returns deep copies of the history, oldest first.
func (m *Manager) Snapshots() []domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Snapshot, len(m.history))
	for i, s := range m.history {
		out[i] = s.Clone()
	}
	return out
}

func (m *Manager) exportAll(ctx context.Context) (map[string][]byte, error) {
	states := make(map[string][]byte, len(m.collaborators))
	for _, c := range m.collaborators {
		blob, err := c.ExportState(ctx)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", c.Name(), err)
		}
		states[c.Name()] = bytes.Clone(blob)
	}
	return states, nil
}

// importAll validates every blob, then imports them in order. If an import
// fails, collaborators already imported get their previous state back.
func (m *Manager) importAll(ctx context.Context, snap domain.Snapshot) error {
	for _, c := range m.collaborators {
		blob, ok := snap.States[c.Name()]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingState, c.Name())
		}
		if v, ok := c.(StateValidator); ok {
			if err := v.ValidateState(ctx, blob); err != nil {
				return fmt.Errorf("validate %s: %w", c.Name(), err)
			}
		}
	}

	backup, err := m.exportAll(ctx)
	if err != nil {
		return fmt.Errorf("backup before import: %w", err)
	}

	for i, c := range m.collaborators {
		if err := c.ImportState(ctx, snap.States[c.Name()]); err != nil {
			m.compensate(ctx, m.collaborators[:i], backup)
			return fmt.Errorf("import %s: %w", c.Name(), err)
		}
	}
	return nil
}

func (m *Manager) compensate(ctx context.Context, imported []Collaborator, backup map[string][]byte) {
	for _, c := range imported {
		if err := c.ImportState(ctx, backup[c.Name()]); err != nil {
			m.log.Error("Failed to restore collaborator after partial rollback",
				"collaborator", c.Name(), "error", err)
		}
	}
}

// persist must be called with m.mu held. Archive errors are logged only.
func (m *Manager) persist(ctx context.Context) {
	metrics.SnapshotHistory.Set(float64(len(m.history)))
	if m.archive == nil {
		return
	}
	if err := m.archive.Store(ctx, m.history); err != nil {
		m.log.Error("Failed to persist snapshot history", "error", err)
	}
}
