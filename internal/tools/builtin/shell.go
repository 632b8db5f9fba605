package builtin

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/golemcore/agentd/pkg/models"
)

// ShellTool runs a command through the system shell. It is gated by
// user confirmation at the dispatch layer; the tool itself only
// enforces the enabled flag and the working directory.
type ShellTool struct {
	enabled bool
	workdir string
}

// NewShellTool creates the shell tool.
func NewShellTool(enabled bool, workdir string) *ShellTool {
	return &ShellTool{enabled: enabled, workdir: workdir}
}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) Enabled() bool { return t.enabled }

func (t *ShellTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        t.Name(),
		Description: "Execute a shell command and return its combined output.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The command line to execute.",
				},
			},
			"required": []any{"command"},
		},
	}
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return models.ToolFailure(models.ToolFailureExecutionFailed, "command is required"), nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if t.workdir != "" {
		cmd.Dir = t.workdir
	}
	out, err := cmd.CombinedOutput()
	output := string(out)
	if err != nil {
		if ctx.Err() != nil {
			return models.ToolFailure(models.ToolFailureTimeout, "command cancelled: "+ctx.Err().Error()), nil
		}
		res := models.ToolFailure(models.ToolFailureExecutionFailed,
			fmt.Sprintf("command failed: %v", err))
		res.Output = output
		return res, nil
	}
	if output == "" {
		output = "(no output)"
	}
	return models.ToolSuccess(output), nil
}
