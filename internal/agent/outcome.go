package agent

import (
	"context"

	"github.com/golemcore/agentd/pkg/models"
)

// outcomeStage summarizes the finished turn. Precedence: an iteration
// limit beats an error beats a pending plan beats plain success.
// Auto-mode turns are finalized like any other.
type outcomeStage struct {
	modelForTier func(tier string) string
}

func newOutcomeStage(modelForTier func(string) string) *outcomeStage {
	return &outcomeStage{modelForTier: modelForTier}
}

func (s *outcomeStage) Name() string { return "turn_outcome" }

func (s *outcomeStage) Order() int { return OrderOutcome }

func (s *outcomeStage) Enabled() bool { return true }

func (s *outcomeStage) ShouldProcess(_ context.Context, turn *TurnContext) bool {
	if turn.Outcome() != nil {
		return false
	}
	return turn.FinalAnswerReady || turn.IterationLimitReached || turn.LLMError != nil
}

func (s *outcomeStage) Process(_ context.Context, turn *TurnContext) error {
	reason := models.FinishSuccess
	switch {
	case turn.IterationLimitReached:
		reason = models.FinishIterationLimit
	case turn.LLMError != nil:
		reason = models.FinishError
	case turn.PlanApprovalNeeded:
		reason = models.FinishPlanMode
	}

	outcome := &models.TurnOutcome{
		FinishReason: reason,
		Failures:     turn.Failures(),
		AutoMode:     turn.AutoMode,
	}
	if turn.Outgoing != nil {
		outcome.AssistantText = turn.Outgoing.Text
	}
	if turn.LLMResponse != nil && turn.LLMResponse.Model != "" {
		outcome.Model = turn.LLMResponse.Model
	} else if s.modelForTier != nil {
		outcome.Model = s.modelForTier(turn.ModelTier)
	}

	turn.SetOutcome(outcome)
	return nil
}
