package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FailureScenarios are the failure modes covered by AnalyzeFailureScenarios.
var FailureScenarios = []string{
	"Input processing failure",
	"Knowledge retrieval error",
	"Inconsistent or contradictory response",
	"Ethical violation in response",
	"External API or service failure",
	"Memory overflow or resource exhaustion",
	"Security breach or unauthorized access attempt",
}

func errorPrompt(output string) string {
	return fmt.Sprintf(`Analyze the following response for potential errors or inaccuracies. Provide a score from 0 to 1, where 0 means no errors and 1 means significant errors:

Response: %s

Error Score:`, output)
}

func consistencyPrompt(input, output string) string {
	return fmt.Sprintf(`Evaluate the consistency and relevance of the following response to the given input. Provide a score from 0 to 1, where 0 means completely inconsistent and 1 means highly consistent and relevant:

Input: %s
Response: %s

Consistency Score:`, input, output)
}

func correctionPrompt(input, output string, errScore, consistency float64) string {
	return fmt.Sprintf(`The following response has been flagged for potential issues (Error Score: %.2f, Consistency Score: %.2f). Please provide an improved and corrected version of the response:

Input: %s
Original Response: %s

Corrected Response:`, errScore, consistency, input, output)
}

func scenarioPrompt(scenarios []string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following potential failure scenarios and provide mitigation strategies for each:\n\n")
	for i, s := range scenarios {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}
	sb.WriteString("\nFor each scenario, provide:\n1. Potential impact\n2. Detection method\n3. Mitigation strategy\n4. Recovery plan")
	return sb.String()
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// parseScore reads the leading number of an advisor answer and clamps it to
// [0,1]. Text without a leading number scores 0.
func parseScore(text string) float64 {
	m := leadingNumber.FindString(strings.TrimSpace(text))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
