package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/metrics"
)

// raise appends the alert to the log and hands it to a detached task
// that publishes it and asks the advisor for an explanation.
func (m *Monitor) raise(
	ctx context.Context,
	sample domain.PerformanceSample,
	kind domain.AlertKind,
	severity domain.Severity,
	message string,
) domain.Alert {
	alert := domain.Alert{
		ID:        uuid.NewString(),
		Node:      sample.Node,
		Kind:      kind,
		Message:   message,
		Severity:  severity,
		Timestamp: m.now(),
		Metrics:   sample,
	}

	m.alertMu.Lock()
	m.appendAlert(alert)
	sinks := append([]AlertSink(nil), m.sinks...)
	m.alertMu.Unlock()

	metrics.AlertsRaised.WithLabelValues(string(kind), string(severity)).Inc()
	m.log.Warn("ALERT raised",
		"alert_id", alert.ID,
		"node", alert.Node,
		"kind", kind,
		"severity", severity,
		"message", message,
	)

	bg := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.deliver(bg, alert, sinks)
	}()

	return alert
}

func (m *Monitor) deliver(ctx context.Context, alert domain.Alert, sinks []AlertSink) {
	for _, s := range sinks {
		if err := s.Publish(ctx, alert); err != nil {
			m.log.Error("Failed to publish alert", "alert_id", alert.ID, "error", err)
		}
	}

	explanation, ok := m.enrich(ctx, alert)
	if !ok {
		return
	}

	m.alertMu.Lock()
	if m.retained(alert.ID) {
		m.explanations[alert.ID] = explanation
	}
	m.alertMu.Unlock()

	for _, s := range sinks {
		a, ok := s.(Annotator)
		if !ok {
			continue
		}
		if err := a.Annotate(ctx, alert.ID, explanation); err != nil {
			m.log.Error("Failed to annotate alert", "alert_id", alert.ID, "error", err)
		}
	}
}

// enrich is best-effort: any failure is logged and the alert stays as raised.
func (m *Monitor) enrich(ctx context.Context, alert domain.Alert) (string, bool) {
	if m.advisor == nil {
		return "", false
	}
	if !m.limiter.Allow() {
		metrics.AlertEnrichments.WithLabelValues("rate_limited").Inc()
		m.log.Debug("Alert enrichment skipped by rate limit", "alert_id", alert.ID)
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.EnrichmentTimeout)
	defer cancel()

	text, err := m.advisor.Assess(ctx, alertPrompt(alert))
	if err != nil {
		metrics.AlertEnrichments.WithLabelValues("error").Inc()
		m.log.Warn("Alert enrichment failed", "alert_id", alert.ID, "error", err)
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.AlertEnrichments.WithLabelValues("empty").Inc()
		return "", false
	}
	metrics.AlertEnrichments.WithLabelValues("ok").Inc()
	return text, true
}

// appendAlert must be called with m.alertMu held. The oldest alert and its
// explanation are evicted once the log is full.
func (m *Monitor) appendAlert(alert domain.Alert) {
	if len(m.alerts) < m.cfg.AlertLogSize {
		m.alerts = append(m.alerts, alert)
		return
	}
	delete(m.explanations, m.alerts[0].ID)
	copy(m.alerts, m.alerts[1:])
	m.alerts[len(m.alerts)-1] = alert
}

// retained must be called with m.alertMu held.
func (m *Monitor) retained(alertID string) bool {
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if m.alerts[i].ID == alertID {
			return true
		}
	}
	return false
}

func alertPrompt(a domain.Alert) string {
	s := a.Metrics
	return fmt.Sprintf(`Analyze the following alert and performance metrics for a processing node:

Alert: %s
Node: %s
Performance Metrics:
- Response Time: %.2f ms
- Error Rate: %.2f%%
- CPU Usage: %.2f%%
- Memory Usage: %.2f%%

Provide a brief analysis of the potential causes and recommended actions.`,
		a.Message, a.Node,
		millis(s.Latency),
		s.ErrorRate()*100,
		s.Usage.CPU,
		s.Usage.Memory,
	)
}

// AlertCount returns the number of alerts held in the in-memory log.
func (m *Monitor) AlertCount() int {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()
	return len(m.alerts)
}

// Alerts returns the retained alerts, oldest first, with explanations attached.
func (m *Monitor) Alerts() []domain.Alert {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()

	out := make([]domain.Alert, len(m.alerts))
	copy(out, m.alerts)
	for i := range out {
		out[i].Explanation = m.explanations[out[i].ID]
	}
	return out
}

// Explanation returns the enrichment text for an alert, if it has arrived.
func (m *Monitor) Explanation(alertID string) (string, bool) {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()
	text, ok := m.explanations[alertID]
	return text, ok
}
