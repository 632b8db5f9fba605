// Package tools defines the tool abstraction, the registry the agent
// dispatches against, and the bounded executor that runs tool calls.
package tools

import (
	"context"

	"github.com/golemcore/agentd/pkg/models"
)

// Tool is a capability the model can invoke. Implementations must be
// safe for concurrent use.
type Tool interface {
	// Name returns the identifier the model addresses this tool by.
	Name() string

	// Enabled reports whether the tool is currently available. Disabled
	// tools are hidden from the model and from dispatch.
	Enabled() bool

	// Definition returns the schema advertised to the model.
	Definition() models.ToolDefinition

	// Execute runs the tool. A failed invocation is reported through
	// the result, not the error; the error is reserved for infrastructure
	// problems (context cancellation, executor shutdown).
	Execute(ctx context.Context, args map[string]any) (models.ToolResult, error)
}
