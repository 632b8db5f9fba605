package agent

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/golemcore/agentd/internal/tools"
	"github.com/golemcore/agentd/pkg/models"
)

func newDispatchHarness(t *testing.T, confirmer *fakeConfirmer, toolList ...tools.Tool) *dispatchStage {
	t.Helper()
	_, executor := newToolRegistry(t, toolList...)
	gate := newConfirmGate(confirmer, nil, nil, slog.Default())
	return newDispatchStage(executor, gate, nil, slog.Default())
}

// A denied call must not stop the batch: the remaining calls still run,
// the transcript gets one assistant message plus one tool message per
// call, and the loop continues into another round.
func TestDispatchDenialIsolation(t *testing.T) {
	searchTool := &testTool{
		name: "search",
		execute: func(_ context.Context, args map[string]any) (models.ToolResult, error) {
			return models.ToolSuccess("results for " + args["query"].(string)), nil
		},
	}
	shellTool := &testTool{name: "shell"}
	stage := newDispatchHarness(t, &fakeConfirmer{available: true}, searchTool, shellTool)

	turn := newTestTurn(userMessage("check disk then search"), 5)
	turn.LLMResponse = &models.LLMResponse{Content: "on it"}
	turn.ToolCalls = []models.ToolCall{
		{ID: "call-1", Name: "shell", Arguments: map[string]any{"command": "df -h"}},
		{ID: "call-2", Name: "search", Arguments: map[string]any{"query": "disk usage"}},
	}

	if err := stage.Process(context.Background(), turn); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if !turn.ToolsExecuted {
		t.Error("ToolsExecuted = false, want true")
	}
	if turn.FinalAnswerReady {
		t.Error("FinalAnswerReady = true after tool round")
	}
	if turn.ToolResultCount() != 2 {
		t.Errorf("tool results = %d, want 2", turn.ToolResultCount())
	}

	shellRes, ok := turn.ToolResult("call-1")
	if !ok {
		t.Fatal("no result for denied shell call")
	}
	if shellRes.Success {
		t.Error("denied call reported success")
	}
	if shellRes.Error != "Cancelled by user" {
		t.Errorf("denial message = %q, want %q", shellRes.Error, "Cancelled by user")
	}
	if shellRes.FailureKind != models.ToolFailureConfirmationDenied {
		t.Errorf("FailureKind = %q, want confirmation_denied", shellRes.FailureKind)
	}

	searchRes, ok := turn.ToolResult("call-2")
	if !ok {
		t.Fatal("no result for approved search call")
	}
	if !searchRes.Success || searchRes.Output != "results for disk usage" {
		t.Errorf("search result = %+v, want success", searchRes)
	}

	msgs := turn.NewMessages()
	if len(msgs) != 3 {
		t.Fatalf("appended %d messages, want 3 (assistant + 2 tool)", len(msgs))
	}
	assistant := msgs[0]
	if assistant.Role != models.RoleAssistant || len(assistant.ToolCalls) != 2 {
		t.Errorf("first message = %+v, want assistant carrying both calls", assistant)
	}
	if assistant.Content != "on it" {
		t.Errorf("assistant content = %q, want model text preserved", assistant.Content)
	}
	for i, id := range []string{"call-1", "call-2"} {
		toolMsg := msgs[i+1]
		if toolMsg.Role != models.RoleTool || toolMsg.ToolCallID != id {
			t.Errorf("message %d = %+v, want tool result for %s", i+1, toolMsg, id)
		}
	}
	if !strings.Contains(msgs[1].Content, "Cancelled by user") {
		t.Errorf("denied tool message = %q, want denial text", msgs[1].Content)
	}
}

func TestDispatchUnknownToolListsRegistered(t *testing.T) {
	stage := newDispatchHarness(t, &fakeConfirmer{available: true},
		&testTool{name: "search"}, &testTool{name: "datetime"})

	turn := newTestTurn(userMessage("hi"), 5)
	turn.ToolCalls = []models.ToolCall{{ID: "c1", Name: "teleport"}}

	if err := stage.Process(context.Background(), turn); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	res, ok := turn.ToolResult("c1")
	if !ok || res.Success {
		t.Fatalf("result = %+v, want recorded failure", res)
	}
	for _, want := range []string{"teleport", "search", "datetime"} {
		if !strings.Contains(res.Error, want) {
			t.Errorf("error %q missing %q", res.Error, want)
		}
	}
}

func TestDispatchAppendsAssistantBeforeExecution(t *testing.T) {
	var seenAssistant bool
	var turn *TurnContext
	tool := &testTool{
		name: "probe",
		execute: func(context.Context, map[string]any) (models.ToolResult, error) {
			msgs := turn.NewMessages()
			seenAssistant = len(msgs) > 0 && msgs[0].Role == models.RoleAssistant
			return models.ToolSuccess("done"), nil
		},
	}
	stage := newDispatchHarness(t, &fakeConfirmer{available: true}, tool)

	turn = newTestTurn(userMessage("probe"), 5)
	turn.ToolCalls = []models.ToolCall{{ID: "c1", Name: "probe"}}
	if err := stage.Process(context.Background(), turn); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if !seenAssistant {
		t.Error("assistant message was not in the transcript when the tool ran")
	}
}

func TestNormalizeCalls(t *testing.T) {
	long := strings.Repeat("x", maxToolCallIDLen+1)
	calls := []models.ToolCall{
		{ID: "dup", Name: "search"},
		{ID: "dup", Name: "search"},
		{ID: "", Name: "search"},
		{ID: long, Name: "search"},
		{ID: "fine", Name: "web.search{\"q\":1}"},
	}
	out := normalizeCalls(calls)

	if out[0].ID != "dup" {
		t.Errorf("first occurrence ID = %q, want dup kept", out[0].ID)
	}
	if out[1].ID == "dup" || out[1].ID == "" {
		t.Error("duplicate ID not regenerated")
	}
	if out[2].ID == "" {
		t.Error("empty ID not regenerated")
	}
	if out[3].ID == long || len(out[3].ID) > maxToolCallIDLen {
		t.Errorf("oversized ID kept: %q", out[3].ID)
	}
	if out[4].Name != "web" {
		t.Errorf("sanitized name = %q, want web", out[4].Name)
	}

	seen := map[string]bool{}
	for _, c := range out {
		if seen[c.ID] {
			t.Errorf("duplicate ID after normalization: %q", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestSanitizeToolName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"search", "search"},
		{"web_search-v2", "web_search-v2"},
		{"shell!rm", "shell"},
		{"fn<call>", "fn"},
		{".leading", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeToolName(tt.in); got != tt.want {
			t.Errorf("sanitizeToolName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateToolOutput(t *testing.T) {
	small := "hello"
	if got := truncateToolOutput(small); got != small {
		t.Errorf("small output changed: %q", got)
	}

	big := strings.Repeat("a", maxToolOutputChars+100)
	got := truncateToolOutput(big)
	if len(got) > maxToolOutputChars {
		t.Errorf("truncated output length = %d, want <= %d", len(got), maxToolOutputChars)
	}
	if !strings.HasSuffix(got, "retrieve the rest.]") {
		t.Errorf("truncated output missing trailing notice: %q", got[len(got)-60:])
	}
	if !strings.Contains(got, "30100 chars total") {
		t.Errorf("notice missing total size: %q", got[len(got)-100:])
	}
}
