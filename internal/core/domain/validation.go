package domain

// ValidationResult is the verdict of the fail-safe gate.
// CorrectedOutput is set only when Valid is false.
type ValidationResult struct {
	Valid            bool    `json:"valid"`
	CorrectedOutput  string  `json:"corrected_output,omitempty"`
	ErrorScore       float64 `json:"error_score"`
	ConsistencyScore float64 `json:"consistency_score"`
	FailedClosed     bool    `json:"failed_closed,omitempty"`
}
