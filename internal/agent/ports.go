package agent

import (
	"context"

	"github.com/golemcore/agentd/pkg/models"
)

// LLMProvider is the completion backend the pipeline talks to.
type LLMProvider interface {
	// Complete performs one completion round. The response may carry
	// text, tool calls, or both.
	Complete(ctx context.Context, req models.LLMRequest) (*models.LLMResponse, error)
}
