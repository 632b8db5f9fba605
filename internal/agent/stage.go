package agent

import "context"

// Stage order constants. Lower runs first within a pass.
const (
	OrderSanitize      = 10
	OrderTier          = 25
	OrderLLM           = 30
	OrderPlanIntercept = 35
	OrderDispatch      = 40
	OrderPlanFinalize  = 50
	OrderRespond       = 56
	OrderOutcome       = 57
	OrderRouting       = 60
)

// Model tiers. Tier changes within a turn are upgrade-only.
const (
	TierStandard = "standard"
	TierCoding   = "coding"
)

// Stage is one step of the turn pipeline. Stages are stateless across
// turns; per-turn state lives on the TurnContext.
type Stage interface {
	// Name identifies the stage in logs and failure events.
	Name() string

	// Order fixes the stage's position. The pipeline is sorted once at
	// construction.
	Order() int

	// Enabled reports whether the stage participates at all. A disabled
	// stage is skipped on every pass.
	Enabled() bool

	// ShouldProcess gates the stage for the current pass.
	ShouldProcess(ctx context.Context, turn *TurnContext) bool

	// Process runs the stage. Errors are recorded as turn failures and
	// never abort the pipeline.
	Process(ctx context.Context, turn *TurnContext) error
}
