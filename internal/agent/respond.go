package agent

import (
	"context"
	"fmt"

	"github.com/golemcore/agentd/internal/llmerrors"
	"github.com/golemcore/agentd/pkg/models"
)

// fallbackText is sent when a finished turn produced no text at all.
// Interactive users always get some feedback.
const fallbackText = "Done."

// iterationLimitText tells the user the turn was cut off.
const iterationLimitText = "I hit the limit on tool rounds for this request, so I stopped here. Ask me to continue if you want more."

// respondStage turns the finished pipeline state into the outgoing
// response.
type respondStage struct{}

func newRespondStage() *respondStage { return &respondStage{} }

func (s *respondStage) Name() string { return "response_preparation" }

func (s *respondStage) Order() int { return OrderRespond }

func (s *respondStage) Enabled() bool { return true }

func (s *respondStage) ShouldProcess(_ context.Context, turn *TurnContext) bool {
	if turn.Outcome() != nil {
		return false
	}
	return turn.FinalAnswerReady || turn.IterationLimitReached || turn.LLMError != nil
}

func (s *respondStage) Process(_ context.Context, turn *TurnContext) error {
	if turn.Outgoing == nil {
		turn.Outgoing = models.TextResponse(s.responseText(turn))
	}
	if len(turn.PendingAttachments) > 0 {
		turn.Outgoing.Attachments = append(turn.Outgoing.Attachments, turn.PendingAttachments...)
		turn.PendingAttachments = nil
	}
	return nil
}

func (s *respondStage) responseText(turn *TurnContext) string {
	switch {
	case turn.IterationLimitReached:
		if turn.LLMResponse != nil && turn.LLMResponse.Content != "" {
			return fmt.Sprintf("%s\n\n%s", turn.LLMResponse.Content, iterationLimitText)
		}
		return iterationLimitText
	case turn.LLMError != nil:
		return llmerrors.UserMessage(turn.LLMErrorCode)
	case turn.LLMResponse != nil && turn.LLMResponse.Content != "":
		return turn.LLMResponse.Content
	case turn.AutoMode:
		return ""
	default:
		return fallbackText
	}
}
