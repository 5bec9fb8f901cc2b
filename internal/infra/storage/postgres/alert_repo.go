package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/infra/storage"
)

// AlertRepo implements storage.AlertRepository using PostgreSQL.
type AlertRepo struct {
	db *DB
}

// NewAlertRepo creates a new PostgreSQL alert repository.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

type alertRow struct {
	ID          string    `db:"id"`
	Node        string    `db:"node"`
	Kind        string    `db:"kind"`
	Severity    string    `db:"severity"`
	Message     string    `db:"message"`
	Metrics     []byte    `db:"metrics"`
	Explanation string    `db:"explanation"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row alertRow) toDomain() domain.Alert {
	a := domain.Alert{
		ID:          row.ID,
		Node:        row.Node,
		Kind:        domain.AlertKind(row.Kind),
		Severity:    domain.Severity(row.Severity),
		Message:     row.Message,
		Explanation: row.Explanation,
		Timestamp:   row.CreatedAt,
	}
	// Metrics are informational; a malformed blob leaves them zero
	_ = json.Unmarshal(row.Metrics, &a.Metrics)
	return a
}

// Save appends an alert.
func (r *AlertRepo) Save(ctx context.Context, alert domain.Alert) error {
	metricsJSON, err := json.Marshal(alert.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode alert metrics: %w", err)
	}

	query := `
		INSERT INTO alerts (id, node, kind, severity, message, metrics, explanation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.ExecContext(
		ctx,
		query,
		alert.ID,
		alert.Node,
		string(alert.Kind),
		string(alert.Severity),
		alert.Message,
		metricsJSON,
		alert.Explanation,
		alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// SetExplanation attaches enrichment text to a stored alert.
func (r *AlertRepo) SetExplanation(ctx context.Context, id string, explanation string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET explanation = $2 WHERE id = $1`, id, explanation)
	if err != nil {
		return fmt.Errorf("failed to set alert explanation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrAlertNotFound
	}
	return nil
}

// Get retrieves an alert by ID.
func (r *AlertRepo) Get(ctx context.Context, id string) (domain.Alert, error) {
	query := `
		SELECT id, node, kind, severity, message, metrics, explanation, created_at
		FROM alerts
		WHERE id = $1
	`
	var row alertRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, storage.ErrAlertNotFound
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("failed to get alert: %w", err)
	}
	return row.toDomain(), nil
}

// List returns alerts newest first.
func (r *AlertRepo) List(ctx context.Context, f storage.AlertFilter) ([]domain.Alert, error) {
	query, args := buildListQuery(f)

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, row.toDomain())
	}
	return alerts, nil
}

// DeleteOlderThan removes alerts raised before t.
func (r *AlertRepo) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE created_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted alerts: %w", err)
	}
	return n, nil
}

func buildListQuery(f storage.AlertFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Node != "" {
		args = append(args, f.Node)
		where = append(where, fmt.Sprintf("node = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, node, kind, severity, message, metrics, explanation, created_at FROM alerts")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args
}
