package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"

	"github.com/golemcore/agentd/pkg/models"
)

// DefaultMaxRounds caps LLM/tool round trips per turn.
const DefaultMaxRounds = 10

// Engine drives a turn through the stage pipeline, round by round,
// until the turn has an outcome. Stage errors and panics are isolated:
// they become failure events on the turn, never a crashed turn.
type Engine struct {
	stages []Stage
	logger *slog.Logger
}

// NewEngine builds an engine over the given stages. The stage order is
// fixed here; it never changes at runtime.
func NewEngine(logger *slog.Logger, stages ...Stage) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order() < sorted[j].Order()
	})
	return &Engine{stages: sorted, logger: logger}
}

// Run processes the turn to completion. It always leaves the turn with
// a non-nil outcome.
func (e *Engine) Run(ctx context.Context, turn *TurnContext) *models.TurnOutcome {
	if turn.MaxRounds <= 0 {
		turn.MaxRounds = DefaultMaxRounds
	}

	for round := 0; ; round++ {
		turn.Round = round
		turn.ToolsExecuted = false

		for _, stage := range e.stages {
			e.runStage(ctx, stage, turn)
		}

		if turn.Outcome() != nil {
			break
		}
		if !turn.ToolsExecuted {
			// No stage asked for another round and none finalized the
			// turn either; stop rather than spin.
			e.logger.Warn("pass ended without progress", "round", round)
			break
		}
		if round+1 >= turn.MaxRounds {
			// One more pass runs so the limit gets a proper response
			// and outcome instead of a silent stop.
			turn.IterationLimitReached = true
		}
	}

	if turn.Outcome() == nil {
		reason := models.FinishSuccess
		if turn.LLMError != nil {
			reason = models.FinishError
		}
		turn.SetOutcome(&models.TurnOutcome{
			FinishReason: reason,
			Failures:     turn.Failures(),
			AutoMode:     turn.AutoMode,
		})
	}
	return turn.Outcome()
}

func (e *Engine) runStage(ctx context.Context, stage Stage, turn *TurnContext) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("stage panicked",
				"stage", stage.Name(),
				"panic", r,
				"stack", string(debug.Stack()))
			turn.AddFailure(models.FailureSourceStage, stage.Name(),
				models.FailureKindPanic, fmt.Sprintf("%v", r))
		}
	}()

	if !stage.Enabled() || !stage.ShouldProcess(ctx, turn) {
		return
	}
	if err := stage.Process(ctx, turn); err != nil {
		e.logger.Error("stage failed", "stage", stage.Name(), "round", turn.Round, "error", err)
		turn.AddFailure(models.FailureSourceStage, stage.Name(),
			models.FailureKindError, err.Error())
	}
}
