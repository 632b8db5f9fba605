package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/golemcore/agentd/internal/llmerrors"
	"github.com/golemcore/agentd/internal/observability"
	"github.com/golemcore/agentd/internal/plans"
	"github.com/golemcore/agentd/internal/tools"
	"github.com/golemcore/agentd/pkg/models"
)

const (
	llmTimeout = 120 * time.Second

	// maxEmptyRetries bounds re-asks when the model returns nothing.
	maxEmptyRetries = 1

	// overflowTruncateThreshold is the message size above which history
	// entries get shortened when the context window overflows.
	overflowTruncateThreshold = 8_000
)

// llmStage performs one completion round against the provider.
type llmStage struct {
	provider     LLMProvider
	registry     *tools.Registry
	plans        *plans.Service
	systemPrompt string
	modelForTier func(tier string) string
	metrics      *observability.Metrics
	logger       *slog.Logger
}

func newLLMStage(provider LLMProvider, registry *tools.Registry, planSvc *plans.Service, systemPrompt string, modelForTier func(string) string, metrics *observability.Metrics, logger *slog.Logger) *llmStage {
	return &llmStage{
		provider:     provider,
		registry:     registry,
		plans:        planSvc,
		systemPrompt: systemPrompt,
		modelForTier: modelForTier,
		metrics:      metrics,
		logger:       logger,
	}
}

func (s *llmStage) Name() string { return "llm_execution" }

func (s *llmStage) Order() int { return OrderLLM }

func (s *llmStage) Enabled() bool { return true }

func (s *llmStage) ShouldProcess(_ context.Context, turn *TurnContext) bool {
	return !turn.FinalAnswerReady && !turn.IterationLimitReached &&
		turn.LLMError == nil && !turn.PlanApprovalNeeded
}

func (s *llmStage) Process(ctx context.Context, turn *TurnContext) error {
	model := s.modelForTier(turn.ModelTier)
	defs := s.registry.Definitions()
	if s.plans != nil && s.plans.Enabled() && s.plans.IsActive(ctx, turn.ChatID()) {
		defs = append(defs, planFinalizeDefinition())
	}
	req := models.LLMRequest{
		Model:        model,
		SystemPrompt: s.systemPrompt,
		Messages:     historyValues(turn.History),
		Tools:        defs,
	}

	resp, err := s.complete(ctx, turn, req)
	if err != nil {
		code := llmerrors.Classify(err)
		s.logger.Error("llm request failed",
			"chat_id", turn.ChatID(),
			"model", model,
			"code", code,
			"error", err)
		s.metrics.RecordLLMError(code)
		turn.LLMError = err
		turn.LLMErrorCode = code
		turn.AddFailure(models.FailureSourceLLM, model, models.FailureKindError, err.Error())
		return nil
	}

	turn.LLMResponse = resp
	s.metrics.RecordTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	if resp.HasToolCalls() {
		turn.ToolCalls = resp.ToolCalls
	} else {
		turn.FinalAnswerReady = true
	}
	return nil
}

// complete calls the provider with the stage timeout, retrying once on
// an empty response and once with truncated history on context
// overflow.
func (s *llmStage) complete(ctx context.Context, turn *TurnContext, req models.LLMRequest) (*models.LLMResponse, error) {
	start := time.Now()
	resp, err := s.completeOnce(ctx, req)
	s.metrics.RecordLLMLatency(time.Since(start))

	if err != nil && llmerrors.IsContextOverflow(llmerrors.Classify(err)) {
		s.logger.Warn("context overflow, retrying with truncated history",
			"chat_id", turn.ChatID(), "messages", len(req.Messages))
		req.Messages = truncateLargeMessages(req.Messages)
		resp, err = s.completeOnce(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	for retry := 0; resp.IsEmpty() && retry < maxEmptyRetries; retry++ {
		s.logger.Warn("empty llm response, retrying", "chat_id", turn.ChatID())
		resp, err = s.completeOnce(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (s *llmStage) completeOnce(ctx context.Context, req models.LLMRequest) (*models.LLMResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()
	return s.provider.Complete(callCtx, req)
}

// truncateLargeMessages shortens oversized history entries so the
// request fits back into the context window. The newest message is
// left untouched.
func truncateLargeMessages(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	for i := range out[:max(len(out)-1, 0)] {
		if len(out[i].Content) > overflowTruncateThreshold {
			out[i].Content = out[i].Content[:overflowTruncateThreshold] + "\n[truncated]"
		}
	}
	return out
}

func historyValues(msgs []*models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return out
}
