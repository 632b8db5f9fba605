package models

import (
	"strconv"
	"strings"
	"time"
)

// PlanStatus tracks a plan through its lifecycle.
type PlanStatus string

const (
	PlanCollecting PlanStatus = "collecting"
	PlanReady      PlanStatus = "ready"
	PlanApproved   PlanStatus = "approved"
	PlanCancelled  PlanStatus = "cancelled"
)

// PlanStep is one recorded tool invocation that was intercepted
// instead of executed.
type PlanStep struct {
	ID          string         `json:"id"`
	ToolName    string         `json:"tool_name"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Description string         `json:"description"`
}

// Plan is an ordered list of steps collected while plan mode is active.
type Plan struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chat_id"`
	Status    PlanStatus `json:"status"`
	Steps     []PlanStep `json:"steps"`
	Title     string     `json:"title,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Summary renders the plan as a numbered list for presentation.
func (p *Plan) Summary() string {
	if len(p.Steps) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, s := range p.Steps {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(s.Description)
	}
	return sb.String()
}
