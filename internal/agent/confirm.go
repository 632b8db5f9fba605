package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golemcore/agentd/internal/channels"
	"github.com/golemcore/agentd/pkg/models"
)

// deniedMessage is the canonical error text for every denied tool
// call, whether the user pressed deny or the confirmation transport
// failed.
const deniedMessage = "Cancelled by user"

// approvalWait bounds the confirmation round trip. A confirmer that
// does not answer in time counts as a denial; the turn never hangs on
// an unanswered prompt.
const approvalWait = 2 * time.Minute

// defaultNotableActions maps tool names to the operations that get a
// fire-and-forget notice when they run without confirmation.
var defaultNotableActions = map[string][]string{
	"filesystem": {"write", "move"},
}

// RequiresConfirmation reports whether a tool call must be approved by
// the user before it runs. The decision depends only on the call.
func RequiresConfirmation(call models.ToolCall) bool {
	switch call.Name {
	case "shell":
		return true
	case "filesystem":
		op, _ := call.Arguments["operation"].(string)
		return op == "delete"
	case "skill_management":
		action, _ := call.Arguments["action"].(string)
		return action == "delete_skill"
	}
	return false
}

// DescribeAction renders a tool call as a short human-readable action
// for the approval prompt.
func DescribeAction(call models.ToolCall) string {
	switch call.Name {
	case "shell":
		cmd, _ := call.Arguments["command"].(string)
		return fmt.Sprintf("Run shell command: %s", cmd)
	case "filesystem":
		op, _ := call.Arguments["operation"].(string)
		path, _ := call.Arguments["path"].(string)
		return fmt.Sprintf("Filesystem %s: %s", op, path)
	case "skill_management":
		name, _ := call.Arguments["skill_name"].(string)
		return fmt.Sprintf("Delete skill: %s", name)
	}
	return fmt.Sprintf("Execute tool: %s", call.Name)
}

// confirmGate decides whether a tool call may proceed. Denials are
// fail-closed: if the user cannot be asked, the answer is no.
type confirmGate struct {
	confirmer channels.Confirmer
	notifier  channels.Notifier
	notable   map[string][]string
	wait      time.Duration
	logger    *slog.Logger
}

// newConfirmGate builds the gate. A nil notable set keeps the default
// side-effecting operations.
func newConfirmGate(confirmer channels.Confirmer, notifier channels.Notifier, notable map[string][]string, logger *slog.Logger) *confirmGate {
	if notable == nil {
		notable = defaultNotableActions
	}
	return &confirmGate{
		confirmer: confirmer,
		notifier:  notifier,
		notable:   notable,
		wait:      approvalWait,
		logger:    logger,
	}
}

// isNotable reports whether a call deserves a fire-and-forget notice
// even though it needs no approval.
func (g *confirmGate) isNotable(call models.ToolCall) bool {
	ops, ok := g.notable[call.Name]
	if !ok {
		return false
	}
	op, _ := call.Arguments["operation"].(string)
	for _, candidate := range ops {
		if candidate == op {
			return true
		}
	}
	return false
}

// check returns whether the call may run. When it may not, the second
// return value is the denial message for the tool result.
func (g *confirmGate) check(ctx context.Context, chatID string, call models.ToolCall) (bool, string) {
	if !RequiresConfirmation(call) {
		if g.notifier != nil && g.isNotable(call) {
			g.notifier.Notify(chatID, "ℹ "+DescribeAction(call))
		}
		return true, ""
	}

	if g.confirmer == nil || !g.confirmer.Available() {
		g.logger.Warn("no confirmation channel, denying tool call",
			"chat_id", chatID, "tool", call.Name)
		return false, deniedMessage
	}

	// Each confirmer may bound itself too, but the gate owns the hard
	// ceiling so a blocking confirmer cannot stall the turn.
	waitCtx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()
	approved, err := g.confirmer.RequestApproval(waitCtx, chatID, call.Name, DescribeAction(call))
	if err != nil {
		g.logger.Warn("confirmation failed, denying tool call",
			"chat_id", chatID, "tool", call.Name, "error", err)
		return false, deniedMessage
	}
	if !approved {
		return false, deniedMessage
	}
	return true, ""
}
