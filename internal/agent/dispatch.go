package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/golemcore/agentd/internal/observability"
	"github.com/golemcore/agentd/internal/tools"
	"github.com/golemcore/agentd/pkg/models"
)

// maxToolCallIDLen bounds provider-issued call IDs. Longer IDs are
// replaced, not trimmed, so they stay unique.
const maxToolCallIDLen = 64

// dispatchStage executes the model's tool calls. The assistant message
// carrying the calls is appended to the transcript before anything
// runs, so the transcript stays coherent even if execution dies
// mid-batch. Calls run sequentially in request order; one failure
// never stops the rest.
type dispatchStage struct {
	executor *tools.Executor
	gate     *confirmGate
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func newDispatchStage(executor *tools.Executor, gate *confirmGate, metrics *observability.Metrics, logger *slog.Logger) *dispatchStage {
	return &dispatchStage{executor: executor, gate: gate, metrics: metrics, logger: logger}
}

func (s *dispatchStage) Name() string { return "tool_dispatch" }

func (s *dispatchStage) Order() int { return OrderDispatch }

func (s *dispatchStage) Enabled() bool { return true }

func (s *dispatchStage) ShouldProcess(_ context.Context, turn *TurnContext) bool {
	return len(turn.ToolCalls) > 0
}

func (s *dispatchStage) Process(ctx context.Context, turn *TurnContext) error {
	calls := normalizeCalls(turn.ToolCalls)

	assistant := &models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		ToolCalls: calls,
	}
	if turn.LLMResponse != nil {
		assistant.Content = turn.LLMResponse.Content
	}
	turn.AppendMessage(assistant)

	for _, call := range calls {
		result := s.executeOne(ctx, turn, call)
		turn.RecordToolResult(call.ID, result)

		if !result.Success {
			kind := models.FailureKindError
			switch result.FailureKind {
			case models.ToolFailureTimeout:
				kind = models.FailureKindTimeout
			case models.ToolFailureConfirmationDenied, models.ToolFailurePolicyDenied:
				kind = models.FailureKindDenied
			}
			turn.AddFailure(models.FailureSourceTool, call.Name, kind, result.Error)
		}

		if skill, ok := result.Data["skill_transition"].(string); ok && skill != "" {
			turn.SkillTransitionRequest = skill
		}

		if att, err := extractAttachment(result.Data); err != nil {
			s.logger.Warn("attachment dropped", "tool", call.Name, "error", err)
			turn.AddFailure(models.FailureSourceTool, call.Name, models.FailureKindError,
				"attachment dropped: "+err.Error())
		} else if att != nil {
			att.Caption = call.Name
			turn.PendingAttachments = append(turn.PendingAttachments, *att)
		}

		turn.AppendMessage(&models.Message{
			ID:         uuid.NewString(),
			Role:       models.RoleTool,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    renderToolResult(result),
		})
	}

	turn.ToolCalls = nil
	turn.ToolsExecuted = true
	return nil
}

func (s *dispatchStage) executeOne(ctx context.Context, turn *TurnContext, call models.ToolCall) models.ToolResult {
	allowed, denial := s.gate.check(ctx, turn.ChatID(), call)
	if !allowed {
		s.logger.Info("tool call denied", "chat_id", turn.ChatID(), "tool", call.Name)
		s.metrics.RecordToolExecution(call.Name, false, 0)
		return models.ToolFailure(models.ToolFailureConfirmationDenied, denial)
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, call)
	if err != nil {
		result = models.ToolFailure(models.ToolFailureExecutionFailed, err.Error())
	}
	s.metrics.RecordToolExecution(call.Name, result.Success, time.Since(start))

	result.Output = truncateToolOutput(result.Output)
	return result
}

// normalizeCalls sanitizes names and guarantees usable, unique IDs
// without reordering the batch.
func normalizeCalls(calls []models.ToolCall) []models.ToolCall {
	out := make([]models.ToolCall, len(calls))
	seen := make(map[string]bool, len(calls))
	for i, call := range calls {
		call.Name = sanitizeToolName(call.Name)
		if call.ID == "" || len(call.ID) > maxToolCallIDLen || seen[call.ID] {
			call.ID = uuid.NewString()
		}
		seen[call.ID] = true
		out[i] = call
	}
	return out
}

// sanitizeToolName keeps the leading run of [A-Za-z0-9_-]; models
// occasionally glue junk onto tool names.
func sanitizeToolName(name string) string {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '_' || c == '-' {
			continue
		}
		return name[:i]
	}
	return name
}

func renderToolResult(result models.ToolResult) string {
	if result.Success {
		if result.Output == "" {
			return "(no output)"
		}
		return result.Output
	}
	// Failures keep partial output (captured stderr and the like) when
	// the tool produced any.
	if result.Output != "" {
		return result.Output
	}
	return "Error: " + result.Error
}
