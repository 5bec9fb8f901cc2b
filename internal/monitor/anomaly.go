package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// Stats is the population mean and standard deviation of a set of values.
type Stats struct {
	Mean   float64
	StdDev float64
	N      int
}

// PopulationStats computes mean and population standard deviation.
func PopulationStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return Stats{
		Mean:   mean,
		StdDev: math.Sqrt(sq / float64(len(values))),
		N:      len(values),
	}
}

// IsOutlier reports whether v sits at least k standard deviations from the mean.
// A zero deviation population has no outliers.
func (s Stats) IsOutlier(v, k float64) bool {
	if s.N < 2 || s.StdDev == 0 {
		return false
	}
	return math.Abs(v-s.Mean) >= k*s.StdDev
}

// latencyStats gathers the current latency of every node that has served traffic.
func (m *Monitor) latencyStats() Stats {
	m.mu.RLock()
	states := make([]*nodeState, 0, len(m.nodes))
	for _, st := range m.nodes {
		states = append(states, st)
	}
	m.mu.RUnlock()

	values := make([]float64, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		if st.sample.Requests > 0 {
			values = append(values, millis(st.sample.Latency))
		}
		st.mu.Unlock()
	}
	return PopulationStats(values)
}

func (m *Monitor) detectAnomalies(ctx context.Context, sample domain.PerformanceSample) {
	stats := m.latencyStats()
	if stats.IsOutlier(millis(sample.Latency), m.cfg.LatencyAnomalyMultiplier) {
		msg := fmt.Sprintf(
			"Anomalous response time detected: %.0fms vs mean %.0fms (σ=%.1fms)",
			millis(sample.Latency), stats.Mean, stats.StdDev,
		)
		m.raise(ctx, sample, domain.AlertKindLatency, domain.SeverityWarning, msg)
	}

	if errRate := sample.ErrorRate(); errRate > m.cfg.ErrorRateThreshold {
		severity := domain.SeverityWarning
		if errRate >= 0.5 {
			severity = domain.SeverityCritical
		}
		msg := fmt.Sprintf("High error rate detected: %.1f%%", errRate*100)
		m.raise(ctx, sample, domain.AlertKindErrorRate, severity, msg)
	}

	limit := m.cfg.ResourceThreshold * 100
	if sample.Usage.CPU > limit || sample.Usage.Memory > limit {
		msg := fmt.Sprintf(
			"High resource usage detected: cpu %.1f%%, memory %.1f%%",
			sample.Usage.CPU, sample.Usage.Memory,
		)
		m.raise(ctx, sample, domain.AlertKindResourceUsage, domain.SeverityWarning, msg)
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
