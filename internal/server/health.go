package server

import (
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// SystemStatus represents the overall health state of the system or a node.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// NodeHealth is one node's entry in the health report.
type NodeHealth struct {
	Name      string                   `json:"name"`
	Role      domain.NodeRole          `json:"role"`
	Status    SystemStatus             `json:"status"`
	ErrorRate float64                  `json:"error_rate"`
	Metrics   domain.PerformanceSample `json:"metrics"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus `json:"system_status"`
	ActiveNode   string       `json:"active_node"`
	Nodes        []NodeHealth `json:"nodes"`
	Snapshots    int          `json:"snapshots"`
	Alerts       int          `json:"alerts"`
	CheckedAt    time.Time    `json:"checked_at"`
}

// nodeStatus grades a node: unhealthy is critical, a high error rate is degraded.
func nodeStatus(n domain.Node, sample domain.PerformanceSample, errorRateThreshold float64) SystemStatus {
	if !n.IsHealthy() {
		return StatusCritical
	}
	if sample.ErrorRate() > errorRateThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

// aggregate is critical when no node is healthy and degraded when any node is not.
func aggregate(nodes []NodeHealth) SystemStatus {
	if len(nodes) == 0 {
		return StatusCritical
	}
	status := StatusHealthy
	healthy := 0
	for _, n := range nodes {
		if n.Status == StatusHealthy {
			healthy++
			continue
		}
		status = StatusDegraded
	}
	if healthy == 0 {
		return StatusCritical
	}
	return status
}

func (s *Server) report() HealthReport {
	threshold := s.deps.Monitor.Config().ErrorRateThreshold
	registry := s.deps.Dispatcher.Registry()

	nodes := registry.Nodes()
	out := make([]NodeHealth, 0, len(nodes))
	for _, n := range nodes {
		sample, _ := s.deps.Monitor.GetMetrics(n.Name)
		out = append(out, NodeHealth{
			Name:      n.Name,
			Role:      n.Role,
			Status:    nodeStatus(n, sample, threshold),
			ErrorRate: sample.ErrorRate(),
			Metrics:   sample,
		})
	}

	return HealthReport{
		SystemStatus: aggregate(out),
		ActiveNode:   registry.Active(),
		Nodes:        out,
		Snapshots:    len(s.deps.Rollback.History()),
		Alerts:       s.deps.Monitor.AlertCount(),
		CheckedAt:    time.Now(),
	}
}
