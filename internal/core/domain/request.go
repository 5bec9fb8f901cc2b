package domain

import "time"

// Request is a unit of work handed to the processing function.
type Request struct {
	ID       string `json:"id"`
	CallerID string `json:"caller_id"`
	Input    string `json:"input"`
}

// Result is what a node returned for a Request.
type Result struct {
	RequestID string         `json:"request_id"`
	NodeID    string         `json:"node_id"`
	Output    string         `json:"output"`
	Latency   time.Duration  `json:"latency"`
	Usage     *ResourceUsage `json:"usage,omitempty"` // reported by the node, if any
}

// Outcome is a single observation of a node attempt.
type Outcome struct {
	RequestID string
	Success   bool
	Latency   time.Duration
	Err       error
	Usage     *ResourceUsage
}

// SuccessOutcome builds an Outcome for a completed attempt.
func SuccessOutcome(requestID string, latency time.Duration) Outcome {
	return Outcome{RequestID: requestID, Success: true, Latency: latency}
}

// FailureOutcome builds an Outcome for a failed attempt.
func FailureOutcome(requestID string, latency time.Duration, err error) Outcome {
	return Outcome{RequestID: requestID, Latency: latency, Err: err}
}

// Response is what the caller receives: the node's output, or the
// correction that replaced it.
type Response struct {
	RequestID  string            `json:"request_id"`
	NodeID     string            `json:"node_id"`
	Output     string            `json:"output"`
	Latency    time.Duration     `json:"latency"`
	Validation *ValidationResult `json:"validation,omitempty"` // nil when validation is disabled
}

// Corrected reports whether Output is a substitute for the node's result.
func (r Response) Corrected() bool {
	return r.Validation != nil && !r.Validation.Valid
}
