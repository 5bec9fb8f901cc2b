// Package node binds processing nodes to their transports.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// ErrUnknownNode is returned when a request targets a node outside the pool.
var ErrUnknownNode = errors.New("unknown node")

// Client runs requests on a single node.
type Client interface {
	Process(ctx context.Context, req domain.Request) (domain.Result, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req domain.Request) (domain.Result, error)

func (f ClientFunc) Process(ctx context.Context, req domain.Request) (domain.Result, error) {
	return f(ctx, req)
}

// Pool routes requests to the client registered for each node name.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[string]Client)}
}

// Add registers the client for a node, replacing any previous one.
func (p *Pool) Add(name string, c Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[name] = c
}

// Process runs req on the named node.
func (p *Pool) Process(ctx context.Context, req domain.Request, node string) (domain.Result, error) {
	p.mu.RLock()
	c, ok := p.clients[node]
	p.mu.RUnlock()
	if !ok {
		return domain.Result{}, fmt.Errorf("%w: %s", ErrUnknownNode, node)
	}
	return c.Process(ctx, req)
}

// Echo is an in-process client that returns its input. It stands in for
// nodes that have no URL configured.
func Echo() Client {
	return ClientFunc(func(ctx context.Context, req domain.Request) (domain.Result, error) {
		if err := ctx.Err(); err != nil {
			return domain.Result{}, err
		}
		return domain.Result{Output: req.Input}, nil
	})
}
