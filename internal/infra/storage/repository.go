package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

var (
	// ErrAlertNotFound is returned when an alert doesn't exist
	ErrAlertNotFound = errors.New("alert not found")
)

// AlertFilter narrows List results. Zero values match everything.
type AlertFilter struct {
	Node  string
	Kind  domain.AlertKind
	Since time.Time
	Limit int
}

// AlertRepository handles alert storage operations
type AlertRepository interface {
	// Save appends an alert
	Save(ctx context.Context, alert domain.Alert) error

	// SetExplanation attaches the enrichment text to a stored alert
	SetExplanation(ctx context.Context, id string, explanation string) error

	// Get retrieves an alert by ID
	Get(ctx context.Context, id string) (domain.Alert, error)

	// List returns alerts newest first
	List(ctx context.Context, filter AlertFilter) ([]domain.Alert, error)

	// DeleteOlderThan removes alerts raised before t
	DeleteOlderThan(ctx context.Context, t time.Time) (int64, error)
}
