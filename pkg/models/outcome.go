package models

import "time"

// FinishReason classifies why a turn ended.
type FinishReason string

const (
	FinishSuccess        FinishReason = "SUCCESS"
	FinishError          FinishReason = "ERROR"
	FinishIterationLimit FinishReason = "ITERATION_LIMIT"
	FinishPlanMode       FinishReason = "PLAN_MODE"
)

// FailureSource identifies which part of the pipeline recorded a failure.
type FailureSource string

const (
	FailureSourceStage   FailureSource = "stage"
	FailureSourceLLM     FailureSource = "llm"
	FailureSourceTool    FailureSource = "tool"
	FailureSourceRouting FailureSource = "routing"
)

// FailureKind categorizes the failure mechanism.
type FailureKind string

const (
	FailureKindError   FailureKind = "error"
	FailureKindPanic   FailureKind = "panic"
	FailureKindTimeout FailureKind = "timeout"
	FailureKindDenied  FailureKind = "denied"
)

// FailureEvent records one failure observed during a turn.
type FailureEvent struct {
	Source  FailureSource `json:"source"`
	Name    string        `json:"name"`
	Kind    FailureKind   `json:"kind"`
	Message string        `json:"message"`
	At      time.Time     `json:"at"`
}

// RoutingOutcome records what the transport layer actually delivered.
type RoutingOutcome struct {
	SentText        bool   `json:"sent_text"`
	AttachmentsSent int    `json:"attachments_sent"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// OutgoingResponse is the user-facing response prepared for transport.
type OutgoingResponse struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// TextResponse builds a text-only outgoing response.
func TextResponse(text string) *OutgoingResponse {
	return &OutgoingResponse{Text: text}
}

// TurnOutcome is the immutable summary of one processed turn. It is built
// exactly once per turn; the transport layer may attach a RoutingOutcome
// afterwards but nothing else changes.
type TurnOutcome struct {
	FinishReason  FinishReason   `json:"finish_reason"`
	AssistantText string         `json:"assistant_text,omitempty"`
	Failures      []FailureEvent `json:"failures,omitempty"`
	Model         string         `json:"model,omitempty"`
	AutoMode      bool           `json:"auto_mode,omitempty"`

	routing *RoutingOutcome
}

// AttachRouting attaches the transport result. Only the first call wins.
func (o *TurnOutcome) AttachRouting(r *RoutingOutcome) {
	if o.routing == nil {
		o.routing = r
	}
}

// Routing returns the transport result, if any.
func (o *TurnOutcome) Routing() *RoutingOutcome {
	return o.routing
}
