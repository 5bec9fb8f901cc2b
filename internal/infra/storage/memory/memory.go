package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/infra/storage"
)

// AlertRepo implements storage.AlertRepository in memory.
type AlertRepo struct {
	mu     sync.RWMutex
	alerts []domain.Alert
	index  map[string]int
}

// NewAlertRepo creates an empty in-memory alert repository.
func NewAlertRepo() *AlertRepo {
	return &AlertRepo{index: make(map[string]int)}
}

func (r *AlertRepo) Save(ctx context.Context, alert domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[alert.ID]; ok {
		r.alerts[i] = alert
		return nil
	}
	r.index[alert.ID] = len(r.alerts)
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *AlertRepo) SetExplanation(ctx context.Context, id string, explanation string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return storage.ErrAlertNotFound
	}
	r.alerts[i].Explanation = explanation
	return nil
}

func (r *AlertRepo) Get(ctx context.Context, id string) (domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return domain.Alert{}, storage.ErrAlertNotFound
	}
	return r.alerts[i], nil
}

func (r *AlertRepo) List(ctx context.Context, f storage.AlertFilter) ([]domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Alert
	for i := len(r.alerts) - 1; i >= 0; i-- {
		a := r.alerts[i]
		if f.Node != "" && a.Node != f.Node {
			continue
		}
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		if !f.Since.IsZero() && a.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *AlertRepo) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.alerts[:0]
	var deleted int64
	for _, a := range r.alerts {
		if a.Timestamp.Before(t) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.alerts = kept

	r.index = make(map[string]int, len(r.alerts))
	for i, a := range r.alerts {
		r.index[a.ID] = i
	}
	return deleted, nil
}
