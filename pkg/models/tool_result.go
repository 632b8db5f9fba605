package models

// ToolFailureKind categorizes why a tool call did not succeed.
type ToolFailureKind string

const (
	ToolFailureNone               ToolFailureKind = ""
	ToolFailureConfirmationDenied ToolFailureKind = "confirmation_denied"
	ToolFailurePolicyDenied       ToolFailureKind = "policy_denied"
	ToolFailureExecutionFailed    ToolFailureKind = "execution_failed"
	ToolFailureTimeout            ToolFailureKind = "timeout"
)

// ToolResult is the tagged success/failure outcome of one tool call. A failed
// result may still carry partial Output (for example captured stderr).
type ToolResult struct {
	Success     bool            `json:"success"`
	Output      string          `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	FailureKind ToolFailureKind `json:"failure_kind,omitempty"`
	Data        map[string]any  `json:"data,omitempty"`
}

// ToolSuccess builds a successful result with the given output text.
func ToolSuccess(output string) ToolResult {
	return ToolResult{Success: true, Output: output}
}

// ToolSuccessData builds a successful result carrying a data payload.
func ToolSuccessData(output string, data map[string]any) ToolResult {
	return ToolResult{Success: true, Output: output, Data: data}
}

// ToolFailure builds a failed result.
func ToolFailure(kind ToolFailureKind, message string) ToolResult {
	return ToolResult{Success: false, FailureKind: kind, Error: message}
}
