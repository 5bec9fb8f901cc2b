package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// explanationTTL bounds how long enrichment text outlives the alert list entry.
const explanationTTL = 7 * 24 * time.Hour

// AlertPublisher pushes alerts onto a capped Redis list, newest first.
type AlertPublisher struct {
	client  *Client
	maxSize int64
}

// NewAlertPublisher creates a publisher keeping at most maxSize alerts.
func NewAlertPublisher(client *Client, maxSize int64) *AlertPublisher {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &AlertPublisher{client: client, maxSize: maxSize}
}

// Publish pushes the alert and trims the list.
func (p *AlertPublisher) Publish(ctx context.Context, alert domain.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	key := p.client.alertsKey()
	pipe := p.client.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, p.maxSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

// Annotate stores the explanation next to the alert list.
func (p *AlertPublisher) Annotate(ctx context.Context, alertID, explanation string) error {
	if err := p.client.rdb.Set(ctx, p.client.explanationKey(alertID), explanation, explanationTTL).Err(); err != nil {
		return fmt.Errorf("failed to annotate alert: %w", err)
	}
	return nil
}

// Recent returns up to n published alerts, newest first, with any stored explanation.
func (p *AlertPublisher) Recent(ctx context.Context, n int64) ([]domain.Alert, error) {
	if n <= 0 {
		n = p.maxSize
	}
	raw, err := p.client.rdb.LRange(ctx, p.client.alertsKey(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(raw))
	for _, item := range raw {
		var a domain.Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue // Skip foreign entries
		}
		if a.Explanation == "" {
			if exp, err := p.client.rdb.Get(ctx, p.client.explanationKey(a.ID)).Result(); err == nil {
				a.Explanation = exp
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}
