package agent

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/golemcore/agentd/internal/channels"
	"github.com/golemcore/agentd/pkg/models"
)

// routingStage delivers the outgoing response through the session's
// channel and attaches the delivery result to the outcome. Delivery
// problems are recorded, never fatal.
type routingStage struct {
	channels *channels.Registry
	logger   *slog.Logger
}

func newRoutingStage(registry *channels.Registry, logger *slog.Logger) *routingStage {
	return &routingStage{channels: registry, logger: logger}
}

func (s *routingStage) Name() string { return "response_routing" }

func (s *routingStage) Order() int { return OrderRouting }

func (s *routingStage) Enabled() bool { return true }

func (s *routingStage) ShouldProcess(_ context.Context, turn *TurnContext) bool {
	return turn.Outcome() != nil && turn.Outgoing != nil &&
		(turn.Outgoing.Text != "" || len(turn.Outgoing.Attachments) > 0)
}

func (s *routingStage) Process(ctx context.Context, turn *TurnContext) error {
	routing := &models.RoutingOutcome{}
	defer turn.Outcome().AttachRouting(routing)

	port, ok := s.channels.Get(turn.Session.Channel)
	if !ok {
		routing.ErrorMessage = "no channel registered for " + string(turn.Session.Channel)
		turn.AddFailure(models.FailureSourceRouting, string(turn.Session.Channel),
			models.FailureKindError, routing.ErrorMessage)
		return nil
	}

	if turn.Outgoing.Text != "" {
		if err := port.SendText(ctx, turn.ChatID(), turn.Outgoing.Text); err != nil {
			routing.ErrorMessage = err.Error()
			turn.AddFailure(models.FailureSourceRouting, string(turn.Session.Channel),
				models.FailureKindError, err.Error())
			s.logger.Error("send text failed", "chat_id", turn.ChatID(), "error", err)
		} else {
			routing.SentText = true
			turn.AppendMessage(&models.Message{
				ID:      uuid.NewString(),
				Role:    models.RoleAssistant,
				Content: turn.Outgoing.Text,
			})
		}
	}

	for _, att := range turn.Outgoing.Attachments {
		if err := port.SendAttachment(ctx, turn.ChatID(), att); err != nil {
			routing.ErrorMessage = err.Error()
			turn.AddFailure(models.FailureSourceRouting, string(turn.Session.Channel),
				models.FailureKindError, "attachment: "+err.Error())
			s.logger.Error("send attachment failed",
				"chat_id", turn.ChatID(), "filename", att.Filename, "error", err)
			continue
		}
		routing.AttachmentsSent++
	}
	return nil
}
