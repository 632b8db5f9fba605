package plans

import (
	"context"
	"sync"
	"time"

	"github.com/golemcore/agentd/pkg/models"
)

// MemoryStore is an in-memory plan store.
type MemoryStore struct {
	mu    sync.RWMutex
	plans map[string]*models.Plan
}

// NewMemoryStore creates an empty in-memory plan store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{plans: make(map[string]*models.Plan)}
}

func (s *MemoryStore) Save(_ context.Context, plan *models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := clonePlan(plan)
	clone.UpdatedAt = time.Now()
	s.plans[plan.ID] = clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePlan(plan), nil
}

func (s *MemoryStore) ActiveForChat(_ context.Context, chatID string) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, plan := range s.plans {
		if plan.ChatID == chatID && plan.Status == models.PlanCollecting {
			return clonePlan(plan), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Close() error { return nil }

func clonePlan(in *models.Plan) *models.Plan {
	out := *in
	out.Steps = make([]models.PlanStep, len(in.Steps))
	for i, step := range in.Steps {
		out.Steps[i] = step
		if step.Arguments != nil {
			args := make(map[string]any, len(step.Arguments))
			for k, v := range step.Arguments {
				args[k] = v
			}
			out.Steps[i].Arguments = args
		}
	}
	return &out
}
