package models

import "time"

// SessionMetadataSkill is the session metadata key holding the active
// behavior profile name.
const SessionMetadataSkill = "active_skill"

// Session represents a conversation thread on a channel.
type Session struct {
	ID        string         `json:"id"`
	Channel   ChannelType    `json:"channel"`
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
