// Package control wires the services together and runs the caller path.
package control

import (
	"context"
	"log/slog"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// Dispatcher runs a request on the node pool.
type Dispatcher interface {
	Process(ctx context.Context, req domain.Request) (domain.Result, error)
}

// Validator screens a result before it reaches the caller.
type Validator interface {
	Validate(ctx context.Context, req domain.Request, result domain.Result) domain.ValidationResult
}

// Gateway is the caller-facing path: dispatch, then validate.
type Gateway struct {
	dispatcher Dispatcher
	validator  Validator
	log        *slog.Logger
}

// NewGateway creates a gateway. A nil validator releases results unchecked.
func NewGateway(dispatcher Dispatcher, validator Validator) *Gateway {
	return &Gateway{
		dispatcher: dispatcher,
		validator:  validator,
		log:        slog.Default().With("component", "gateway"),
	}
}

// Handle dispatches req and returns either the node's output or its correction.
// Only dispatch errors are returned; validation always yields a response.
func (g *Gateway) Handle(ctx context.Context, req domain.Request) (domain.Response, error) {
	result, err := g.dispatcher.Process(ctx, req)
	if err != nil {
		return domain.Response{}, err
	}
	req.ID = result.RequestID

	resp := domain.Response{
		RequestID: result.RequestID,
		NodeID:    result.NodeID,
		Output:    result.Output,
		Latency:   result.Latency,
	}
	if g.validator == nil {
		return resp, nil
	}

	v := g.validator.Validate(ctx, req, result)
	resp.Validation = &v
	if !v.Valid {
		resp.Output = v.CorrectedOutput
		g.log.Info("Result replaced by correction",
			"request_id", req.ID,
			"node", result.NodeID,
			"failed_closed", v.FailedClosed,
		)
	}
	return resp, nil
}
