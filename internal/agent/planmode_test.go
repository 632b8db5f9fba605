package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/golemcore/agentd/internal/tools"
	"github.com/golemcore/agentd/pkg/models"
)

// With a plan collecting, tool calls become recorded steps and
// synthetic tool messages; nothing executes.
func TestPlanInterceptRecordsSteps(t *testing.T) {
	executed := false
	shell := &testTool{
		name: "shell",
		execute: func(context.Context, map[string]any) (models.ToolResult, error) {
			executed = true
			return models.ToolSuccess("ran"), nil
		},
	}
	h := newHarness(t, harnessOptions{
		script: []providerStep{
			respondCalls("",
				models.ToolCall{ID: "c1", Name: "shell", Arguments: map[string]any{"command": "make build"}},
			),
			respondCalls("",
				models.ToolCall{ID: "c2", Name: planFinalizeTool, Arguments: map[string]any{"title": "build"}},
			),
		},
		tools:    []tools.Tool{shell},
		planMode: true,
	})

	ctx := context.Background()
	if _, err := h.plans.Activate(ctx, "chat-1"); err != nil {
		t.Fatalf("Activate() error: %v", err)
	}

	outcome, err := h.runner.HandleMessage(ctx, userMessage("build the project"))
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}

	if executed {
		t.Error("tool executed while plan mode was active")
	}
	if outcome.FinishReason != models.FinishPlanMode {
		t.Errorf("FinishReason = %s, want PLAN_MODE", outcome.FinishReason)
	}

	texts := h.port.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "shell: make build") {
		t.Errorf("sent texts = %v, want plan summary with recorded step", texts)
	}

	// The model's second request must show the synthetic tool message.
	if len(h.provider.requests) != 2 {
		t.Fatalf("provider calls = %d, want 2", len(h.provider.requests))
	}
	var planned bool
	for _, m := range h.provider.requests[1].Messages {
		if m.Role == models.RoleTool && strings.Contains(m.Content, "Planned — not yet executed") {
			planned = true
		}
	}
	if !planned {
		t.Error("second request missing the planned-step tool message")
	}
}

func TestPlanTextOnlyResponseFinalizes(t *testing.T) {
	h := newHarness(t, harnessOptions{
		script: []providerStep{
			respondCalls("",
				models.ToolCall{ID: "c1", Name: "filesystem", Arguments: map[string]any{"operation": "write", "path": "notes.md"}},
			),
			respondText("That covers everything."),
		},
		tools:    []tools.Tool{&testTool{name: "filesystem"}},
		planMode: true,
	})

	ctx := context.Background()
	if _, err := h.plans.Activate(ctx, "chat-1"); err != nil {
		t.Fatalf("Activate() error: %v", err)
	}

	outcome, err := h.runner.HandleMessage(ctx, userMessage("plan the notes"))
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if outcome.FinishReason != models.FinishPlanMode {
		t.Errorf("FinishReason = %s, want PLAN_MODE", outcome.FinishReason)
	}
	texts := h.port.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "filesystem: write") {
		t.Errorf("sent texts = %v, want plan summary", texts)
	}
}

func TestPlanEmptyFinalizeCancels(t *testing.T) {
	h := newHarness(t, harnessOptions{
		script:   []providerStep{respondText("Nothing to plan.")},
		planMode: true,
	})

	ctx := context.Background()
	if _, err := h.plans.Activate(ctx, "chat-1"); err != nil {
		t.Fatalf("Activate() error: %v", err)
	}

	outcome, err := h.runner.HandleMessage(ctx, userMessage("never mind"))
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if outcome.FinishReason != models.FinishSuccess {
		t.Errorf("FinishReason = %s, want SUCCESS after cancelled empty plan", outcome.FinishReason)
	}
	texts := h.port.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Plan cancelled") {
		t.Errorf("sent texts = %v, want cancellation notice", texts)
	}
	if h.plans.IsActive(ctx, "chat-1") {
		t.Error("plan still active after empty finalize")
	}
}

func TestPlanModeInactiveDispatchesNormally(t *testing.T) {
	executed := false
	echo := &testTool{
		name: "echo",
		execute: func(context.Context, map[string]any) (models.ToolResult, error) {
			executed = true
			return models.ToolSuccess("done"), nil
		},
	}
	h := newHarness(t, harnessOptions{
		script: []providerStep{
			respondCalls("", models.ToolCall{ID: "c1", Name: "echo"}),
			respondText("ok"),
		},
		tools:    []tools.Tool{echo},
		planMode: true,
	})

	if _, err := h.runner.HandleMessage(context.Background(), userMessage("run it")); err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if !executed {
		t.Error("tool not executed although no plan was active")
	}
}

func TestBuildStepDescription(t *testing.T) {
	tests := []struct {
		name string
		call models.ToolCall
		want string
	}{
		{
			"operation wins",
			models.ToolCall{Name: "filesystem", Arguments: map[string]any{"operation": "delete", "path": "/tmp/x"}},
			"filesystem: delete",
		},
		{
			"command",
			models.ToolCall{Name: "shell", Arguments: map[string]any{"command": "go test ./..."}},
			"shell: go test ./...",
		},
		{
			"url",
			models.ToolCall{Name: "browser", Arguments: map[string]any{"url": "https://example.com"}},
			"browser: https://example.com",
		},
		{
			"no detail",
			models.ToolCall{Name: "datetime", Arguments: map[string]any{}},
			"datetime",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildStepDescription(tt.call); got != tt.want {
				t.Errorf("buildStepDescription() = %q, want %q", got, tt.want)
			}
		})
	}

	long := models.ToolCall{Name: "shell", Arguments: map[string]any{"command": strings.Repeat("a", 200)}}
	got := buildStepDescription(long)
	if len(got) != maxStepDescriptionLen || !strings.HasSuffix(got, "...") {
		t.Errorf("long description = %d chars %q, want %d with ellipsis", len(got), got, maxStepDescriptionLen)
	}
}
