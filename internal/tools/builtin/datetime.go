// Package builtin provides the tools bundled with the agent.
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/golemcore/agentd/pkg/models"
)

// DateTimeTool reports the current date and time, optionally in a
// requested IANA timezone.
type DateTimeTool struct {
	now func() time.Time
}

// NewDateTimeTool creates the datetime tool.
func NewDateTimeTool() *DateTimeTool {
	return &DateTimeTool{now: time.Now}
}

func (t *DateTimeTool) Name() string { return "datetime" }

func (t *DateTimeTool) Enabled() bool { return true }

func (t *DateTimeTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        t.Name(),
		Description: "Get the current date and time. Optionally pass an IANA timezone name.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA timezone, e.g. Europe/Berlin. Defaults to the server timezone.",
				},
			},
		},
	}
}

func (t *DateTimeTool) Execute(_ context.Context, args map[string]any) (models.ToolResult, error) {
	now := t.now()
	if tz, ok := args["timezone"].(string); ok && tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return models.ToolFailure(models.ToolFailureExecutionFailed,
				fmt.Sprintf("unknown timezone %q", tz)), nil
		}
		now = now.In(loc)
	}
	return models.ToolSuccessData(
		now.Format("Monday, 2 January 2006 15:04:05 MST"),
		map[string]any{"unix": now.Unix(), "iso": now.Format(time.RFC3339)},
	), nil
}
