package domain

import "time"

// ResourceUsage holds utilization percentages in the range 0-100.
type ResourceUsage struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
}

// PerformanceSample is the latest view of a node's performance.
// It is overwritten on every observation; History keeps a short rolling window.
type PerformanceSample struct {
	Node           string          `json:"node"`
	Latency        time.Duration   `json:"latency"`
	AverageLatency time.Duration   `json:"average_latency"`
	Requests       int             `json:"requests"`
	Errors         int             `json:"errors"`
	Usage          ResourceUsage   `json:"usage"`
	Status         NodeStatus      `json:"status"`
	History        []time.Duration `json:"history,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ErrorRate returns errors over total observed requests.
func (s PerformanceSample) ErrorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Requests)
}
