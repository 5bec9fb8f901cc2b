package dispatch

import (
	"context"
	"errors"
	"strings"
)

// ErrAllNodesUnavailable matches every *AllNodesUnavailableError.
var ErrAllNodesUnavailable = errors.New("all nodes are unavailable")

// NodeFailure is one failed attempt within a call chain.
type NodeFailure struct {
	Node string
	Err  error
}

// AllNodesUnavailableError is returned when every node failed within one call.
type AllNodesUnavailableError struct {
	Failures []NodeFailure
}

func (e *AllNodesUnavailableError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrAllNodesUnavailable.Error())
	for i, f := range e.Failures {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		sb.WriteString(f.Node)
		sb.WriteString(": ")
		sb.WriteString(f.Err.Error())
	}
	return sb.String()
}

// Is lets errors.Is(err, ErrAllNodesUnavailable) match.
func (e *AllNodesUnavailableError) Is(target error) bool {
	return target == ErrAllNodesUnavailable
}

// Unwrap exposes the per-node errors.
func (e *AllNodesUnavailableError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// ErrorAction determines how to handle an attempt error.
type ErrorAction int

const (
	ActionFailover ErrorAction = iota
	ActionAbort
)

// ClassifyError decides whether an attempt error should move the request to
// another node. Only the caller's own cancellation aborts the chain; a node
// that blows its attempt deadline is failed over like any other error.
func ClassifyError(parent context.Context, err error) ErrorAction {
	if err == nil {
		return ActionFailover
	}
	if parent.Err() != nil {
		return ActionAbort
	}
	return ActionFailover
}
