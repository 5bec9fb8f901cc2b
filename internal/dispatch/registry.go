package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

var (
	// ErrNoNodes is returned when a registry is built from an empty node list.
	ErrNoNodes = errors.New("no nodes configured")

	// ErrUnknownNode is returned for names outside the registry.
	ErrUnknownNode = errors.New("unknown node")
)

// Registry owns the fixed node pool and the active-node assignment.
type Registry struct {
	mu         sync.RWMutex
	order      []string
	nodes      map[string]*domain.Node
	active     string
	onFailover func(from, to, reason string)
}

// NewRegistry creates a registry; the first name starts active.
func NewRegistry(names []string) (*Registry, error) {
	if len(names) == 0 {
		return nil, ErrNoNodes
	}

	r := &Registry{
		order: make([]string, 0, len(names)),
		nodes: make(map[string]*domain.Node, len(names)),
	}
	now := time.Now()
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("node %d has an empty name", i)
		}
		if _, dup := r.nodes[name]; dup {
			return nil, fmt.Errorf("duplicate node %q", name)
		}
		role := domain.NodeRoleBackup
		if i == 0 {
			role = domain.NodeRoleActive
			r.active = name
		}
		r.order = append(r.order, name)
		r.nodes[name] = &domain.Node{
			Name:      name,
			Status:    domain.NodeStatusHealthy,
			Role:      role,
			UpdatedAt: now,
		}
	}
	return r, nil
}

// SetFailoverCallback registers a function invoked after every promotion.
func (r *Registry) SetFailoverCallback(fn func(from, to, reason string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailover = fn
}

// Active returns the name of the active node.
func (r *Registry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Names returns node names in pool order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Nodes returns copies of every node in pool order.
func (r *Registry) Nodes() []domain.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Node, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.nodes[name])
	}
	return out
}

// Get returns a copy of a node.
func (r *Registry) Get(name string) (domain.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	if !ok {
		return domain.Node{}, false
	}
	return *n, true
}

// SetStatus records a node's health.
func (r *Registry) SetStatus(name string, status domain.NodeStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[name]; ok && n.Status != status {
		n.Status = status
		n.UpdatedAt = time.Now()
	}
}

// Promote makes to the active node, but only while from is still active.
// It reports whether the promotion happened.
func (r *Registry) Promote(from, to, reason string) bool {
	r.mu.Lock()
	if r.active != from || from == to {
		r.mu.Unlock()
		return false
	}
	next, ok := r.nodes[to]
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.swap(next)
	cb := r.onFailover
	r.mu.Unlock()

	if cb != nil {
		cb(from, to, reason)
	}
	return true
}

// SetActive forces a node to become active regardless of the current assignment.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	next, ok := r.nodes[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	from := r.active
	if from == name {
		r.mu.Unlock()
		return nil
	}
	r.swap(next)
	cb := r.onFailover
	r.mu.Unlock()

	if cb != nil {
		cb(from, name, "operator")
	}
	return nil
}

// swap must be called with r.mu held.
func (r *Registry) swap(next *domain.Node) {
	now := time.Now()
	if cur, ok := r.nodes[r.active]; ok {
		cur.Role = domain.NodeRoleBackup
		cur.UpdatedAt = now
	}
	next.Role = domain.NodeRoleActive
	next.UpdatedAt = now
	r.active = next.Name
}

// nextCandidate picks the first untried node, preferring healthy ones.
func (r *Registry) nextCandidate(tried map[string]bool) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if !tried[name] && r.nodes[name].IsHealthy() {
			return name, true
		}
	}
	for _, name := range r.order {
		if !tried[name] {
			return name, true
		}
	}
	return "", false
}
