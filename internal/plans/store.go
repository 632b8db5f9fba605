// Package plans implements plan mode: while active, tool calls are
// recorded as plan steps instead of being executed.
package plans

import (
	"context"
	"errors"

	"github.com/golemcore/agentd/pkg/models"
)

var (
	// ErrNotFound is returned when no plan matches.
	ErrNotFound = errors.New("plan not found")

	// ErrAlreadyActive is returned when a chat already has a plan
	// collecting steps.
	ErrAlreadyActive = errors.New("plan mode already active for chat")

	// ErrNoActivePlan is returned for plan operations on a chat with no
	// collecting plan.
	ErrNoActivePlan = errors.New("no active plan for chat")

	// ErrEmptyPlan is returned when finalizing a plan that collected no
	// steps; the plan is cancelled instead.
	ErrEmptyPlan = errors.New("plan has no steps")
)

// Store persists plans. At most one plan per chat may be in the
// collecting state.
type Store interface {
	// Save upserts a plan.
	Save(ctx context.Context, plan *models.Plan) error

	// Get returns a plan by ID or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Plan, error)

	// ActiveForChat returns the chat's collecting plan or ErrNotFound.
	ActiveForChat(ctx context.Context, chatID string) (*models.Plan, error)

	// Close releases the store's resources.
	Close() error
}
