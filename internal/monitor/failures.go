package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vietddude/sentinel/internal/core/domain"
)

func (m *Monitor) logFailure(node string, outcome domain.Outcome) {
	msg := "unknown error"
	if outcome.Err != nil {
		msg = outcome.Err.Error()
	}
	m.appendFailure(domain.FailureRecord{
		Kind:      domain.FailureKindDispatch,
		Node:      node,
		RequestID: outcome.RequestID,
		Message:   msg,
		Timestamp: m.now(),
	})
	m.log.Error("Node attempt failed", "node", node, "request_id", outcome.RequestID, "error", msg)
}

// RecordValidation logs a rejected result in the failure log. Valid results
// are ignored.
func (m *Monitor) RecordValidation(ctx context.Context, node, requestID string, v domain.ValidationResult) {
	if v.Valid {
		return
	}
	msg := fmt.Sprintf("result rejected (error score %.2f, consistency score %.2f)", v.ErrorScore, v.ConsistencyScore)
	if v.FailedClosed {
		msg = "result could not be assessed; fallback returned"
	}
	m.appendFailure(domain.FailureRecord{
		Kind:      domain.FailureKindValidation,
		Node:      node,
		RequestID: requestID,
		Message:   msg,
		Timestamp: m.now(),
	})
	m.log.Warn("Result failed validation", "node", node, "request_id", requestID, "failed_closed", v.FailedClosed)
}

func (m *Monitor) appendFailure(rec domain.FailureRecord) {
	m.failMu.Lock()
	if len(m.failures) >= m.cfg.FailureLogSize {
		copy(m.failures, m.failures[1:])
		m.failures[len(m.failures)-1] = rec
	} else {
		m.failures = append(m.failures, rec)
	}
	m.failMu.Unlock()
}

// RecentFailures returns the bounded failure log, oldest first.
func (m *Monitor) RecentFailures() []domain.FailureRecord {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	return append([]domain.FailureRecord(nil), m.failures...)
}

// AnalyzeFailures asks the advisor for systemic causes behind recent failures.
func (m *Monitor) AnalyzeFailures(ctx context.Context) (string, error) {
	failures := m.RecentFailures()
	if len(failures) == 0 {
		return "No failures recorded.", nil
	}
	if m.advisor == nil {
		return "", fmt.Errorf("no advisor configured")
	}

	counts := make(map[string]int)
	rejected := 0
	for _, f := range failures {
		if f.Kind == domain.FailureKindValidation {
			rejected++
			continue
		}
		counts[f.Node]++
	}
	nodes := make([]string, 0, len(counts))
	for n := range counts {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	var sb strings.Builder
	sb.WriteString("Analyze the following dispatch failure summary for a processing cluster:\n\n")
	for _, n := range nodes {
		fmt.Fprintf(&sb, "%s: %d failures\n", n, counts[n])
	}
	if rejected > 0 {
		fmt.Fprintf(&sb, "rejected results: %d\n", rejected)
	}
	fmt.Fprintf(&sb, "\nMost recent error: %s\n", failures[len(failures)-1].Message)
	sb.WriteString("\nProvide insights on potential systemic issues and recommendations for improving stability.")

	ctx, cancel := context.WithTimeout(ctx, m.cfg.EnrichmentTimeout)
	defer cancel()

	analysis, err := m.advisor.Assess(ctx, sb.String())
	if err != nil {
		return "", fmt.Errorf("failed to analyze failures: %w", err)
	}
	return strings.TrimSpace(analysis), nil
}
