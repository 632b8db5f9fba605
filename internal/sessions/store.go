// Package sessions persists conversation sessions and their message
// history.
package sessions

import (
	"context"
	"errors"

	"github.com/golemcore/agentd/pkg/models"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Store is the persistence contract for sessions and messages.
type Store interface {
	// GetOrCreate returns the session for a channel/chat pair, creating
	// it if necessary.
	GetOrCreate(ctx context.Context, channel models.ChannelType, chatID string) (*models.Session, error)

	// Get returns a session by ID or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)

	// Save upserts a session.
	Save(ctx context.Context, session *models.Session) error

	// AppendMessage appends one message to a session's history.
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error

	// History returns the most recent messages in chronological order,
	// capped at limit. A limit of 0 means no cap.
	History(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)

	// Close releases the store's resources.
	Close() error
}
