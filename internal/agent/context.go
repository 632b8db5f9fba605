package agent

import (
	"time"

	"github.com/golemcore/agentd/internal/security"
	"github.com/golemcore/agentd/pkg/models"
)

// TurnContext carries the mutable state of one turn through the
// pipeline. It is confined to the goroutine running the turn; stages
// access it without locking.
type TurnContext struct {
	Session  *models.Session
	Incoming *models.Message

	// History is the working transcript: persisted history plus every
	// message appended during this turn.
	History []*models.Message

	// Round counts completed LLM/tool round trips, starting at 0.
	Round     int
	MaxRounds int

	// ModelTier only ever escalates within a turn.
	ModelTier string
	AutoMode  bool

	// ActiveSkill names the behavior profile in effect for this turn.
	// SkillTransitionRequest carries a switch requested by a tool through
	// its result data; the runner applies it after the turn.
	ActiveSkill            string
	SkillTransitionRequest string

	LLMResponse  *models.LLMResponse
	LLMError     error
	LLMErrorCode string

	// ToolCalls holds the calls awaiting dispatch this round.
	ToolCalls []models.ToolCall

	// ToolsExecuted signals that this round produced tool results the
	// model has not seen yet, so another round is needed.
	ToolsExecuted bool

	FinalAnswerReady      bool
	IterationLimitReached bool

	PlanApprovalNeeded    bool
	PlanFinalizeRequested bool
	PlanTitle             string

	SanitizationThreats []security.Threat
	PendingAttachments  []models.Attachment
	Outgoing            *models.OutgoingResponse

	newMessages []*models.Message
	toolResults map[string]models.ToolResult
	failures    []models.FailureEvent
	outcome     *models.TurnOutcome
}

// NewTurnContext builds the context for one turn. history must already
// include the incoming message.
func NewTurnContext(session *models.Session, incoming *models.Message, history []*models.Message, maxRounds int) *TurnContext {
	skill, _ := session.Metadata[models.SessionMetadataSkill].(string)
	return &TurnContext{
		Session:     session,
		Incoming:    incoming,
		History:     history,
		MaxRounds:   maxRounds,
		ModelTier:   TierStandard,
		AutoMode:    incoming.AutoMode(),
		ActiveSkill: skill,
		toolResults: make(map[string]models.ToolResult),
	}
}

// AppendMessage adds a message produced during this turn to the working
// transcript and marks it for persistence.
func (t *TurnContext) AppendMessage(msg *models.Message) {
	msg.SessionID = t.Session.ID
	msg.Channel = t.Session.Channel
	msg.ChatID = t.Session.ChatID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	t.History = append(t.History, msg)
	t.newMessages = append(t.newMessages, msg)
}

// NewMessages returns the messages appended during this turn, in order.
func (t *TurnContext) NewMessages() []*models.Message {
	return t.newMessages
}

// RecordToolResult stores the result for a tool call ID.
func (t *TurnContext) RecordToolResult(callID string, result models.ToolResult) {
	t.toolResults[callID] = result
}

// ToolResult returns the recorded result for a tool call ID.
func (t *TurnContext) ToolResult(callID string) (models.ToolResult, bool) {
	r, ok := t.toolResults[callID]
	return r, ok
}

// ToolResultCount returns how many tool results this turn recorded.
func (t *TurnContext) ToolResultCount() int {
	return len(t.toolResults)
}

// AddFailure records a non-fatal failure observed during the turn.
func (t *TurnContext) AddFailure(source models.FailureSource, name string, kind models.FailureKind, message string) {
	t.failures = append(t.failures, models.FailureEvent{
		Source:  source,
		Name:    name,
		Kind:    kind,
		Message: message,
		At:      time.Now(),
	})
}

// Failures returns a copy of the recorded failures.
func (t *TurnContext) Failures() []models.FailureEvent {
	out := make([]models.FailureEvent, len(t.failures))
	copy(out, t.failures)
	return out
}

// SetOutcome finalizes the turn. Only the first call wins; the turn is
// summarized at most once.
func (t *TurnContext) SetOutcome(outcome *models.TurnOutcome) {
	if t.outcome == nil {
		t.outcome = outcome
	}
}

// Outcome returns the finalized outcome, or nil while the turn is in
// flight.
func (t *TurnContext) Outcome() *models.TurnOutcome {
	return t.outcome
}

// ChatID is a shorthand for the session's chat.
func (t *TurnContext) ChatID() string {
	return t.Session.ChatID
}
