package plans

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/golemcore/agentd/pkg/models"
)

// Service coordinates plan lifecycle on top of a Store.
type Service struct {
	store   Store
	enabled bool
	logger  *slog.Logger
}

// NewService creates a plan service. With enabled false every
// IsActive check is a cheap no.
func NewService(store Store, enabled bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, enabled: enabled, logger: logger}
}

// Enabled reports whether plan mode is available at all.
func (s *Service) Enabled() bool { return s.enabled }

// IsActive reports whether the chat has a plan collecting steps.
func (s *Service) IsActive(ctx context.Context, chatID string) bool {
	if !s.enabled {
		return false
	}
	_, err := s.store.ActiveForChat(ctx, chatID)
	return err == nil
}

// Activate starts collecting a new plan for the chat.
func (s *Service) Activate(ctx context.Context, chatID string) (*models.Plan, error) {
	if !s.enabled {
		return nil, errors.New("plan mode is disabled")
	}
	if _, err := s.store.ActiveForChat(ctx, chatID); err == nil {
		return nil, ErrAlreadyActive
	}
	now := time.Now()
	plan := &models.Plan{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Status:    models.PlanCollecting,
		Steps:     []models.PlanStep{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, plan); err != nil {
		return nil, err
	}
	s.logger.Info("plan mode activated", "chat_id", chatID, "plan_id", plan.ID)
	return plan, nil
}

// Active returns the chat's collecting plan.
func (s *Service) Active(ctx context.Context, chatID string) (*models.Plan, error) {
	plan, err := s.store.ActiveForChat(ctx, chatID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoActivePlan
	}
	return plan, err
}

// AddStep appends a step to the chat's collecting plan.
func (s *Service) AddStep(ctx context.Context, chatID string, step models.PlanStep) error {
	plan, err := s.Active(ctx, chatID)
	if err != nil {
		return err
	}
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	plan.Steps = append(plan.Steps, step)
	return s.store.Save(ctx, plan)
}

// Finalize marks the chat's collecting plan ready for approval. A plan
// without steps is cancelled and ErrEmptyPlan returned.
func (s *Service) Finalize(ctx context.Context, chatID, title string) (*models.Plan, error) {
	plan, err := s.Active(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(plan.Steps) == 0 {
		plan.Status = models.PlanCancelled
		if err := s.store.Save(ctx, plan); err != nil {
			return nil, err
		}
		return nil, ErrEmptyPlan
	}
	plan.Status = models.PlanReady
	if title != "" {
		plan.Title = title
	}
	if err := s.store.Save(ctx, plan); err != nil {
		return nil, err
	}
	s.logger.Info("plan finalized", "chat_id", chatID, "plan_id", plan.ID, "steps", len(plan.Steps))
	return plan, nil
}

// Approve marks a ready plan approved for execution.
func (s *Service) Approve(ctx context.Context, planID string) (*models.Plan, error) {
	plan, err := s.store.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != models.PlanReady {
		return nil, errors.New("plan is not awaiting approval")
	}
	plan.Status = models.PlanApproved
	if err := s.store.Save(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Cancel cancels the chat's collecting plan. Cancelling a chat with no
// active plan is not an error.
func (s *Service) Cancel(ctx context.Context, chatID string) error {
	plan, err := s.Active(ctx, chatID)
	if errors.Is(err, ErrNoActivePlan) {
		return nil
	}
	if err != nil {
		return err
	}
	plan.Status = models.PlanCancelled
	if err := s.store.Save(ctx, plan); err != nil {
		return err
	}
	s.logger.Info("plan cancelled", "chat_id", chatID, "plan_id", plan.ID)
	return nil
}
