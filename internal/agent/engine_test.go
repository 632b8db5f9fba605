package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/golemcore/agentd/internal/tools"
	"github.com/golemcore/agentd/pkg/models"
)

func TestTurnTextOnly(t *testing.T) {
	h := newHarness(t, harnessOptions{
		script: []providerStep{respondText("The capital of France is Paris.")},
	})

	outcome, err := h.runner.HandleMessage(context.Background(), userMessage("capital of France?"))
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if outcome.FinishReason != models.FinishSuccess {
		t.Errorf("FinishReason = %s, want SUCCESS", outcome.FinishReason)
	}
	if outcome.AssistantText != "The capital of France is Paris." {
		t.Errorf("AssistantText = %q", outcome.AssistantText)
	}
	routing := outcome.Routing()
	if routing == nil || !routing.SentText {
		t.Errorf("routing = %+v, want text sent", routing)
	}
	texts := h.port.sentTexts()
	if len(texts) != 1 || texts[0] != "The capital of France is Paris." {
		t.Errorf("sent texts = %v", texts)
	}
}

// The full two-round loop: the model asks for two tools, the shell call
// is denied, the search call runs, and the next round produces the
// final answer from the tool results.
func TestTurnToolRoundThenAnswer(t *testing.T) {
	search := &testTool{
		name: "search",
		execute: func(context.Context, map[string]any) (models.ToolResult, error) {
			return models.ToolSuccess("42 GB free"), nil
		},
	}
	h := newHarness(t, harnessOptions{
		script: []providerStep{
			respondCalls("",
				models.ToolCall{ID: "c1", Name: "shell", Arguments: map[string]any{"command": "df"}},
				models.ToolCall{ID: "c2", Name: "search", Arguments: map[string]any{"query": "disk"}},
			),
			respondText("You have 42 GB free; the shell check was declined."),
		},
		tools: []tools.Tool{search, &testTool{name: "shell"}},
	})

	outcome, err := h.runner.HandleMessage(context.Background(), userMessage("how much disk is free?"))
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if outcome.FinishReason != models.FinishSuccess {
		t.Errorf("FinishReason = %s, want SUCCESS", outcome.FinishReason)
	}

	// Second request must carry the assistant tool-call message and
	// both tool results.
	if len(h.provider.requests) != 2 {
		t.Fatalf("provider calls = %d, want 2", len(h.provider.requests))
	}
	second := h.provider.requests[1].Messages
	var toolMsgs, assistantCalls int
	for _, m := range second {
		if m.Role == models.RoleTool {
			toolMsgs++
		}
		if m.Role == models.RoleAssistant && len(m.ToolCalls) == 2 {
			assistantCalls++
		}
	}
	if assistantCalls != 1 || toolMsgs != 2 {
		t.Errorf("second request: assistant-with-calls=%d toolMsgs=%d, want 1 and 2", assistantCalls, toolMsgs)
	}

	// A denied tool surfaces as a turn failure but not a turn error.
	var denied bool
	for _, f := range outcome.Failures {
		if f.Source == models.FailureSourceTool && f.Kind == models.FailureKindDenied {
			denied = true
		}
	}
	if !denied {
		t.Errorf("failures = %v, want a denied tool failure", outcome.Failures)
	}
}

func TestTurnIterationLimit(t *testing.T) {
	loop := &testTool{name: "loop"}
	call := models.ToolCall{Name: "loop", Arguments: map[string]any{}}
	h := newHarness(t, harnessOptions{
		script: []providerStep{
			respondCalls("", call), respondCalls("", call), respondCalls("", call),
		},
		tools:     []tools.Tool{loop},
		maxRounds: 3,
	})

	outcome, err := h.runner.HandleMessage(context.Background(), userMessage("loop forever"))
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if outcome.FinishReason != models.FinishIterationLimit {
		t.Errorf("FinishReason = %s, want ITERATION_LIMIT", outcome.FinishReason)
	}
	if len(h.provider.requests) != 3 {
		t.Errorf("provider calls = %d, want exactly maxRounds", len(h.provider.requests))
	}
	texts := h.port.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "limit") {
		t.Errorf("sent texts = %v, want an iteration limit notice", texts)
	}
}

func TestTurnLLMError(t *testing.T) {
	h := newHarness(t, harnessOptions{
		script: []providerStep{respondErr(errors.New("[rate_limit] slow down"))},
	})

	outcome, err := h.runner.HandleMessage(context.Background(), userMessage("hello"))
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if outcome.FinishReason != models.FinishError {
		t.Errorf("FinishReason = %s, want ERROR", outcome.FinishReason)
	}
	texts := h.port.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "too many requests") {
		t.Errorf("sent texts = %v, want rate limit explanation", texts)
	}
	if len(outcome.Failures) == 0 || outcome.Failures[0].Source != models.FailureSourceLLM {
		t.Errorf("failures = %v, want an llm failure", outcome.Failures)
	}
}

func TestTurnFeedbackFallback(t *testing.T) {
	h := newHarness(t, harnessOptions{
		script: []providerStep{
			// Empty twice: the stage retries once, then accepts empty.
			{resp: &models.LLMResponse{}},
			{resp: &models.LLMResponse{}},
		},
	})

	outcome, err := h.runner.HandleMessage(context.Background(), userMessage("say nothing"))
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if outcome.FinishReason != models.FinishSuccess {
		t.Errorf("FinishReason = %s, want SUCCESS", outcome.FinishReason)
	}
	texts := h.port.sentTexts()
	if len(texts) != 1 || texts[0] != fallbackText {
		t.Errorf("sent texts = %v, want the fallback %q", texts, fallbackText)
	}
}

func TestTurnPersistsTranscript(t *testing.T) {
	echo := &testTool{
		name: "echo",
		execute: func(_ context.Context, args map[string]any) (models.ToolResult, error) {
			return models.ToolSuccess("echoed"), nil
		},
	}
	h := newHarness(t, harnessOptions{
		script: []providerStep{
			respondCalls("", models.ToolCall{ID: "c1", Name: "echo"}),
			respondText("all done"),
		},
		tools: []tools.Tool{echo},
	})

	ctx := context.Background()
	msg := userMessage("echo please")
	if _, err := h.runner.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}

	session, err := h.sessions.GetOrCreate(ctx, msg.Channel, msg.ChatID)
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}
	history, err := h.sessions.History(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}

	wantRoles := []models.Role{
		models.RoleUser,      // incoming
		models.RoleAssistant, // tool-call request
		models.RoleTool,      // echo result
		models.RoleAssistant, // final answer
	}
	if len(history) != len(wantRoles) {
		t.Fatalf("history length = %d, want %d", len(history), len(wantRoles))
	}
	for i, want := range wantRoles {
		if history[i].Role != want {
			t.Errorf("history[%d].Role = %s, want %s", i, history[i].Role, want)
		}
	}
	if history[3].Content != "all done" {
		t.Errorf("final message = %q, want all done", history[3].Content)
	}
}

func TestEngineStagePanicIsolated(t *testing.T) {
	panicky := &testTool{
		name: "bomb",
		execute: func(context.Context, map[string]any) (models.ToolResult, error) {
			panic("kaboom")
		},
	}
	h := newHarness(t, harnessOptions{
		script: []providerStep{
			respondCalls("", models.ToolCall{ID: "c1", Name: "bomb"}),
			respondText("survived"),
		},
		tools: []tools.Tool{panicky},
	})

	outcome, err := h.runner.HandleMessage(context.Background(), userMessage("go"))
	if err != nil {
		t.Fatalf("HandleMessage() error: %v", err)
	}
	if outcome.FinishReason != models.FinishSuccess {
		t.Errorf("FinishReason = %s, want SUCCESS despite tool panic", outcome.FinishReason)
	}
}

func TestOutcomeSetOnce(t *testing.T) {
	turn := newTestTurn(userMessage("x"), 3)
	first := &models.TurnOutcome{FinishReason: models.FinishSuccess}
	turn.SetOutcome(first)
	turn.SetOutcome(&models.TurnOutcome{FinishReason: models.FinishError})
	if turn.Outcome() != first {
		t.Error("second SetOutcome replaced the first")
	}
}

func TestOutcomeFailuresCopied(t *testing.T) {
	turn := newTestTurn(userMessage("x"), 3)
	turn.AddFailure(models.FailureSourceTool, "shell", models.FailureKindDenied, "Cancelled by user")

	failures := turn.Failures()
	failures[0].Message = "mutated"

	if turn.Failures()[0].Message != "Cancelled by user" {
		t.Error("caller mutation leaked into the turn's failures")
	}
}

// recordingStage logs its Process invocations into a shared trace so
// tests can assert engine scheduling.
type recordingStage struct {
	name    string
	order   int
	enabled bool
	skip    bool
	trace   *[]string
	process func(turn *TurnContext)
}

func (s *recordingStage) Name() string { return s.name }

func (s *recordingStage) Order() int { return s.order }

func (s *recordingStage) Enabled() bool { return s.enabled }

func (s *recordingStage) ShouldProcess(context.Context, *TurnContext) bool { return !s.skip }

func (s *recordingStage) Process(_ context.Context, turn *TurnContext) error {
	*s.trace = append(*s.trace, s.name)
	if s.process != nil {
		s.process(turn)
	}
	return nil
}

func TestEngineRunsStagesInOrder(t *testing.T) {
	var trace []string
	finalize := func(turn *TurnContext) {
		turn.SetOutcome(&models.TurnOutcome{FinishReason: models.FinishSuccess})
	}

	// Registered deliberately out of order; "middle" and "middle-twin"
	// share an order so registration order must break the tie. One
	// stage opts out, one is disabled outright.
	stages := []Stage{
		&recordingStage{name: "last", order: 90, enabled: true, trace: &trace, process: finalize},
		&recordingStage{name: "middle", order: 40, enabled: true, trace: &trace},
		&recordingStage{name: "skipped", order: 50, enabled: true, skip: true, trace: &trace},
		&recordingStage{name: "disabled", order: 60, enabled: false, trace: &trace},
		&recordingStage{name: "middle-twin", order: 40, enabled: true, trace: &trace},
		&recordingStage{name: "first", order: 10, enabled: true, trace: &trace},
	}
	engine := NewEngine(slog.Default(), stages...)

	turn := newTestTurn(userMessage("hello"), 3)
	outcome := engine.Run(context.Background(), turn)
	if outcome == nil {
		t.Fatal("Run() returned nil outcome")
	}

	want := []string{"first", "middle", "middle-twin", "last"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestEngineTieOrderIsDeterministic(t *testing.T) {
	runOnce := func() []string {
		var trace []string
		stages := []Stage{
			&recordingStage{name: "a", order: 20, enabled: true, trace: &trace},
			&recordingStage{name: "b", order: 20, enabled: true, trace: &trace},
			&recordingStage{name: "c", order: 20, enabled: true, trace: &trace, process: func(turn *TurnContext) {
				turn.SetOutcome(&models.TurnOutcome{FinishReason: models.FinishSuccess})
			}},
		}
		engine := NewEngine(slog.Default(), stages...)
		engine.Run(context.Background(), newTestTurn(userMessage("x"), 3))
		return trace
	}

	first := runOnce()
	for run := 0; run < 5; run++ {
		got := runOnce()
		if len(got) != len(first) {
			t.Fatalf("run %d trace = %v, want %v", run, got, first)
		}
		for i := range first {
			if got[i] != first[i] {
				t.Fatalf("run %d trace = %v, want %v", run, got, first)
			}
		}
	}
}
