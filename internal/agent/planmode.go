package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/golemcore/agentd/internal/plans"
	"github.com/golemcore/agentd/pkg/models"
)

// plannedStepContent is the synthetic tool result the model sees for an
// intercepted call.
const plannedStepContent = "[Planned — not yet executed. This step was recorded in the plan.]"

// planFinalizeTool is the pseudo-tool the model calls to close out a
// plan. It is never dispatched; the intercept stage consumes it.
const planFinalizeTool = "plan_finalize"

// maxStepDescriptionLen caps step descriptions in the plan summary.
const maxStepDescriptionLen = 80

// planFinalizeDefinition is advertised to the model only while a plan
// is collecting.
func planFinalizeDefinition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        planFinalizeTool,
		Description: "Finish recording the current plan and present it to the user for approval.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short title for the plan.",
				},
			},
		},
	}
}

// planInterceptStage records tool calls as plan steps instead of
// executing them while plan mode is active. The transcript gets the
// same assistant-then-tool-message shape a real dispatch would
// produce, so the model keeps planning coherently.
type planInterceptStage struct {
	service *plans.Service
	logger  *slog.Logger
}

func newPlanInterceptStage(service *plans.Service, logger *slog.Logger) *planInterceptStage {
	return &planInterceptStage{service: service, logger: logger}
}

func (s *planInterceptStage) Name() string { return "plan_intercept" }

func (s *planInterceptStage) Order() int { return OrderPlanIntercept }

func (s *planInterceptStage) Enabled() bool { return s.service != nil && s.service.Enabled() }

func (s *planInterceptStage) ShouldProcess(ctx context.Context, turn *TurnContext) bool {
	return len(turn.ToolCalls) > 0 && s.service.IsActive(ctx, turn.ChatID())
}

func (s *planInterceptStage) Process(ctx context.Context, turn *TurnContext) error {
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
		content := plannedStepContent

		if call.Name == planFinalizeTool {
			turn.PlanFinalizeRequested = true
			if title, ok := call.Arguments["title"].(string); ok {
				turn.PlanTitle = title
			}
			content = "Plan finalization requested."
		} else {
			err := s.service.AddStep(ctx, turn.ChatID(), models.PlanStep{
				ToolName:    call.Name,
				Arguments:   call.Arguments,
				Description: buildStepDescription(call),
			})
			if err != nil {
				// The plan vanished mid-turn. Drop out of plan mode
				// quietly; the calls are lost, not executed.
				s.logger.Warn("plan step rejected, leaving plan mode",
					"chat_id", turn.ChatID(), "error", err)
				content = "Plan mode ended; step was not recorded."
			}
		}

		turn.AppendMessage(&models.Message{
			ID:         uuid.NewString(),
			Role:       models.RoleTool,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    content,
		})
	}

	turn.ToolCalls = nil
	turn.ToolsExecuted = true
	return nil
}

// buildStepDescription renders a call as one plan line, preferring the
// argument that best names the action.
func buildStepDescription(call models.ToolCall) string {
	detail := ""
	for _, key := range []string{"operation", "command", "path", "url"} {
		if v, ok := call.Arguments[key].(string); ok && v != "" {
			detail = v
			break
		}
	}
	desc := call.Name
	if detail != "" {
		desc = fmt.Sprintf("%s: %s", call.Name, detail)
	}
	if len(desc) > maxStepDescriptionLen {
		desc = desc[:maxStepDescriptionLen-3] + "..."
	}
	return desc
}

// planFinalizeStage closes out plan mode once the model either calls
// plan_finalize or answers in plain text while a plan is collecting.
type planFinalizeStage struct {
	service *plans.Service
	logger  *slog.Logger
}

func newPlanFinalizeStage(service *plans.Service, logger *slog.Logger) *planFinalizeStage {
	return &planFinalizeStage{service: service, logger: logger}
}

func (s *planFinalizeStage) Name() string { return "plan_finalize" }

func (s *planFinalizeStage) Order() int { return OrderPlanFinalize }

func (s *planFinalizeStage) Enabled() bool { return s.service != nil && s.service.Enabled() }

func (s *planFinalizeStage) ShouldProcess(ctx context.Context, turn *TurnContext) bool {
	if !s.service.Enabled() || turn.PlanApprovalNeeded {
		return false
	}
	if !turn.PlanFinalizeRequested && !turn.FinalAnswerReady {
		return false
	}
	return s.service.IsActive(ctx, turn.ChatID())
}

func (s *planFinalizeStage) Process(ctx context.Context, turn *TurnContext) error {
	plan, err := s.service.Finalize(ctx, turn.ChatID(), turn.PlanTitle)
	if errors.Is(err, plans.ErrEmptyPlan) {
		turn.Outgoing = models.TextResponse("Plan cancelled: no steps were recorded.")
		turn.FinalAnswerReady = true
		turn.ToolsExecuted = false
		return nil
	}
	if err != nil {
		return fmt.Errorf("finalize plan: %w", err)
	}

	text := "Here's the plan"
	if plan.Title != "" {
		text += " for " + plan.Title
	}
	text += ":\n\n" + plan.Summary() + "\n\nApprove it to start execution."
	turn.Outgoing = models.TextResponse(text)
	turn.PlanApprovalNeeded = true
	turn.FinalAnswerReady = true
	turn.ToolsExecuted = false
	return nil
}
