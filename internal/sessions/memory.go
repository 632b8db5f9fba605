package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/golemcore/agentd/pkg/models"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
// All returned values are clones so callers cannot mutate stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	byChat   map[string]string
	messages map[string][]*models.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		byChat:   make(map[string]string),
		messages: make(map[string][]*models.Message),
	}
}

func chatKey(channel models.ChannelType, chatID string) string {
	return fmt.Sprintf("%s:%s", channel, chatID)
}

func (s *MemoryStore) GetOrCreate(_ context.Context, channel models.ChannelType, chatID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chatKey(channel, chatID)
	if id, ok := s.byChat[key]; ok {
		return cloneSession(s.sessions[id]), nil
	}

	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		Channel:   channel,
		ChatID:    chatID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[session.ID] = cloneSession(session)
	s.byChat[key] = session.ID
	return session, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *MemoryStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := cloneSession(session)
	clone.UpdatedAt = time.Now()
	s.sessions[session.ID] = clone
	s.byChat[chatKey(session.Channel, session.ChatID)] = session.ID
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, sessionID string, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	clone := cloneMessage(msg)
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.SessionID = sessionID
	s.messages[sessionID] = append(s.messages[sessionID], clone)
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*models.Message, len(msgs))
	for i, m := range msgs {
		out[i] = cloneMessage(m)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneSession(in *models.Session) *models.Session {
	out := *in
	if in.Metadata != nil {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func cloneMessage(in *models.Message) *models.Message {
	out := *in
	if in.ToolCalls != nil {
		out.ToolCalls = append([]models.ToolCall(nil), in.ToolCalls...)
	}
	if in.Metadata != nil {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
