package storage

import (
	"context"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// AlertLog delivers monitor alerts into a repository.
type AlertLog struct {
	repo AlertRepository
}

// NewAlertLog wraps repo as an alert sink.
func NewAlertLog(repo AlertRepository) *AlertLog {
	return &AlertLog{repo: repo}
}

// Publish stores the alert.
func (l *AlertLog) Publish(ctx context.Context, alert domain.Alert) error {
	return l.repo.Save(ctx, alert)
}

// Annotate attaches an explanation to a stored alert.
func (l *AlertLog) Annotate(ctx context.Context, alertID, explanation string) error {
	return l.repo.SetExplanation(ctx, alertID, explanation)
}
