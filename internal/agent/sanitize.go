package agent

import (
	"context"
	"log/slog"

	"github.com/golemcore/agentd/internal/security"
)

// sanitizeStage screens the incoming user message on the first pass.
// Detection is advisory: threats are recorded and logged, the message
// still flows to the model. Auto-mode messages are synthetic and skip
// screening.
type sanitizeStage struct {
	guard  *security.Guard
	logger *slog.Logger
}

func newSanitizeStage(guard *security.Guard, logger *slog.Logger) *sanitizeStage {
	return &sanitizeStage{guard: guard, logger: logger}
}

func (s *sanitizeStage) Name() string { return "input_sanitization" }

func (s *sanitizeStage) Order() int { return OrderSanitize }

func (s *sanitizeStage) Enabled() bool { return true }

func (s *sanitizeStage) ShouldProcess(_ context.Context, turn *TurnContext) bool {
	return turn.Round == 0 && !turn.AutoMode && turn.Incoming != nil && turn.Incoming.Content != ""
}

func (s *sanitizeStage) Process(_ context.Context, turn *TurnContext) error {
	turn.Incoming.Content = s.guard.Clean(turn.Incoming.Content)

	threats := s.guard.Inspect(turn.Incoming.Content)
	if len(threats) == 0 {
		return nil
	}
	turn.SanitizationThreats = threats
	for _, th := range threats {
		s.logger.Warn("suspicious input pattern",
			"chat_id", turn.ChatID(),
			"kind", th.Kind,
			"pattern", th.Pattern)
	}
	return nil
}
