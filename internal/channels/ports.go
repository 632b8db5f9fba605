// Package channels defines the transport contracts between the agent
// core and concrete messaging surfaces.
package channels

import (
	"context"

	"github.com/golemcore/agentd/pkg/models"
)

// Port is the outbound side of a channel: everything the agent needs
// to deliver a turn's results to the user.
type Port interface {
	// ChannelType identifies the transport.
	ChannelType() models.ChannelType

	// SendText delivers a text message to a chat.
	SendText(ctx context.Context, chatID, text string) error

	// SendAttachment delivers a binary payload to a chat.
	SendAttachment(ctx context.Context, chatID string, att models.Attachment) error

	// ShowTyping signals activity to the chat. Implementations for
	// transports without a typing concept return nil.
	ShowTyping(ctx context.Context, chatID string) error
}

// Confirmer asks the user to approve a sensitive action and blocks
// until they answer, the context expires, or the transport fails.
// Errors and timeouts must be treated as denial by callers.
type Confirmer interface {
	// Available reports whether confirmations can currently be delivered.
	Available() bool

	// RequestApproval presents the action and waits for the verdict.
	RequestApproval(ctx context.Context, chatID, action, description string) (bool, error)
}

// Notifier delivers fire-and-forget notices about notable actions.
// Delivery failures are logged by implementations, never surfaced.
type Notifier interface {
	Notify(chatID, text string)
}
