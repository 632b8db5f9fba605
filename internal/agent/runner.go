// Package agent implements the turn pipeline: a fixed sequence of
// stages that takes an inbound message through sanitization, model
// completion, tool dispatch, plan mode, and response delivery.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golemcore/agentd/internal/channels"
	"github.com/golemcore/agentd/internal/observability"
	"github.com/golemcore/agentd/internal/plans"
	"github.com/golemcore/agentd/internal/ratelimit"
	"github.com/golemcore/agentd/internal/security"
	"github.com/golemcore/agentd/internal/sessions"
	"github.com/golemcore/agentd/internal/tools"
	"github.com/golemcore/agentd/pkg/models"
)

const (
	defaultHistoryLimit = 100

	typingInterval = 5 * time.Second
)

// Config wires the runner's collaborators.
type Config struct {
	Provider     LLMProvider
	ToolRegistry *tools.Registry
	ToolExecutor *tools.Executor
	Sessions     sessions.Store
	Plans        *plans.Service
	Channels     *channels.Registry
	Confirmer    channels.Confirmer
	Notifier     channels.Notifier
	Limiter      *ratelimit.Limiter
	Metrics      *observability.Metrics
	Logger       *slog.Logger

	SystemPrompt string

	// Models maps a tier name to the provider model to use for it.
	Models map[string]string

	// NotableActions maps tool names to operations that get a notice
	// when they run without confirmation. Nil keeps the default set.
	NotableActions map[string][]string

	MaxRounds    int
	HistoryLimit int
}

// Runner processes inbound messages end to end: rate limiting, session
// bookkeeping, the stage pipeline, and persistence of everything the
// turn produced.
type Runner struct {
	engine       *Engine
	sessions     sessions.Store
	channels     *channels.Registry
	limiter      *ratelimit.Limiter
	metrics      *observability.Metrics
	logger       *slog.Logger
	maxRounds    int
	historyLimit int
}

// NewRunner builds the stage pipeline and the runner around it.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("agent: session store is required")
	}
	if cfg.ToolRegistry == nil || cfg.ToolExecutor == nil {
		return nil, fmt.Errorf("agent: tool registry and executor are required")
	}
	if cfg.Channels == nil {
		return nil, fmt.Errorf("agent: channel registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	modelForTier := func(tier string) string {
		if model, ok := cfg.Models[tier]; ok {
			return model
		}
		return cfg.Models[TierStandard]
	}

	gate := newConfirmGate(cfg.Confirmer, cfg.Notifier, cfg.NotableActions, cfg.Logger)
	stages := []Stage{
		newSanitizeStage(security.NewGuard(), cfg.Logger),
		newTierStage(cfg.Logger),
		newLLMStage(cfg.Provider, cfg.ToolRegistry, cfg.Plans, cfg.SystemPrompt, modelForTier, cfg.Metrics, cfg.Logger),
		newDispatchStage(cfg.ToolExecutor, gate, cfg.Metrics, cfg.Logger),
		newRespondStage(),
		newOutcomeStage(modelForTier),
		newRoutingStage(cfg.Channels, cfg.Logger),
	}
	if cfg.Plans != nil {
		// Registered even when plan mode is off; the stages gate
		// themselves via Enabled.
		stages = append(stages,
			newPlanInterceptStage(cfg.Plans, cfg.Logger),
			newPlanFinalizeStage(cfg.Plans, cfg.Logger),
		)
	}

	return &Runner{
		engine:       NewEngine(cfg.Logger, stages...),
		sessions:     cfg.Sessions,
		channels:     cfg.Channels,
		limiter:      cfg.Limiter,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		maxRounds:    cfg.MaxRounds,
		historyLimit: cfg.HistoryLimit,
	}, nil
}

// HandleMessage processes one inbound message and returns the turn's
// outcome. A rate-limited message returns a nil outcome.
func (r *Runner) HandleMessage(ctx context.Context, msg *models.Message) (*models.TurnOutcome, error) {
	start := time.Now()
	auto := msg.AutoMode()

	if !auto && r.limiter != nil {
		if res := r.limiter.TryConsume(msg.ChatID); !res.Allowed {
			r.metrics.RecordRateLimited()
			r.logger.Warn("turn rate limited",
				"chat_id", msg.ChatID, "retry_after", res.RetryAfter)
			if port, ok := r.channels.Get(msg.Channel); ok {
				text := fmt.Sprintf("You're sending messages too quickly. Try again in %s.",
					res.RetryAfter.Round(time.Second))
				if err := port.SendText(ctx, msg.ChatID, text); err != nil {
					r.logger.Warn("rate limit notice failed", "error", err)
				}
			}
			return nil, nil
		}
	}

	session, err := r.sessions.GetOrCreate(ctx, msg.Channel, msg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := r.sessions.AppendMessage(ctx, session.ID, msg); err != nil {
		return nil, fmt.Errorf("persist incoming message: %w", err)
	}
	history, err := r.sessions.History(ctx, session.ID, r.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turn := NewTurnContext(session, msg, history, r.maxRounds)

	stopTyping := func() {}
	if !auto {
		stopTyping = r.startTyping(ctx, session)
	}
	outcome := r.engine.Run(ctx, turn)
	stopTyping()

	for _, produced := range turn.NewMessages() {
		if err := r.sessions.AppendMessage(ctx, session.ID, produced); err != nil {
			r.logger.Error("persist turn message failed",
				"session_id", session.ID, "role", produced.Role, "error", err)
		}
	}

	if skill := turn.SkillTransitionRequest; skill != "" && skill != turn.ActiveSkill {
		if session.Metadata == nil {
			session.Metadata = make(map[string]any)
		}
		session.Metadata[models.SessionMetadataSkill] = skill
		if err := r.sessions.Save(ctx, session); err != nil {
			r.logger.Error("persist skill transition failed",
				"session_id", session.ID, "skill", skill, "error", err)
		}
	}

	r.metrics.RecordTurn(string(outcome.FinishReason), time.Since(start))
	r.logger.Info("turn finished",
		"chat_id", msg.ChatID,
		"finish_reason", outcome.FinishReason,
		"rounds", turn.Round+1,
		"failures", len(outcome.Failures),
		"duration", time.Since(start))
	return outcome, nil
}

// startTyping keeps the channel's typing indicator alive until the
// returned stop function is called.
func (r *Runner) startTyping(ctx context.Context, session *models.Session) func() {
	port, ok := r.channels.Get(session.Channel)
	if !ok {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		if err := port.ShowTyping(ctx, session.ChatID); err != nil {
			return
		}
		for {
			select {
			case <-ticker.C:
				if err := port.ShowTyping(ctx, session.ChatID); err != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}
