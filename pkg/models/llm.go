package models

// LLMRequest is a provider-agnostic completion request.
type LLMRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	MaxTokens    int
	Temperature  float32
}

// TokenUsage reports token consumption for one completion.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// LLMResponse is a provider-agnostic completion result.
type LLMResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Model     string     `json:"model,omitempty"`
	Usage     TokenUsage `json:"usage"`
}

// HasToolCalls reports whether the model requested tool execution.
func (r *LLMResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// IsEmpty reports whether the response carries neither text nor tool calls.
func (r *LLMResponse) IsEmpty() bool {
	return r == nil || (r.Content == "" && len(r.ToolCalls) == 0)
}
