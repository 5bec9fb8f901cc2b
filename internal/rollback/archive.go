package rollback

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// MemoryArchive keeps the last stored history in memory.
type MemoryArchive struct {
	mu      sync.Mutex
	history []domain.Snapshot
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{}
}

func (a *MemoryArchive) Store(_ context.Context, history []domain.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = cloneHistory(history)
	return nil
}

func (a *MemoryArchive) Load(_ context.Context) ([]domain.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneHistory(a.history), nil
}

func cloneHistory(history []domain.Snapshot) []domain.Snapshot {
	out := make([]domain.Snapshot, len(history))
	for i, s := range history {
		out[i] = s.Clone()
	}
	return out
}

// EncodeHistory serializes a snapshot history for byte-oriented archives.
func EncodeHistory(history []domain.Snapshot) ([]byte, error) {
	return json.Marshal(history)
}

// DecodeHistory is the inverse of EncodeHistory.
func DecodeHistory(data []byte) ([]domain.Snapshot, error) {
	var history []domain.Snapshot
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decode snapshot history: %w", err)
	}
	return history, nil
}
