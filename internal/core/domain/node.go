package domain

import "time"

// NodeStatus is the health state of a processing node.
type NodeStatus string

const (
	NodeStatusHealthy   NodeStatus = "healthy"
	NodeStatusUnhealthy NodeStatus = "unhealthy"
)

// NodeRole tells whether a node currently serves traffic.
type NodeRole string

const (
	NodeRoleActive NodeRole = "active"
	NodeRoleBackup NodeRole = "backup"
)

// Node is a named processing endpoint. Exactly one node in a registry is active.
type Node struct {
	Name      string     `json:"name"`
	Status    NodeStatus `json:"status"`
	Role      NodeRole   `json:"role"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsHealthy reports whether the node was last seen healthy.
func (n Node) IsHealthy() bool {
	return n.Status == NodeStatusHealthy
}
