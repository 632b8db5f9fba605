package models

import (
	"time"
)

// ChannelType identifies a messaging transport.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelConsole  ChannelType = "console"
	ChannelWeb      ChannelType = "web"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// MetadataAutoMode marks synthetic messages generated by scheduled/automatic
// runs. Auto-mode turns skip rate limiting, sanitization and the feedback
// guarantee.
const MetadataAutoMode = "auto.mode"

// Message is the unified conversation message across all channels.
// Tool-role messages carry ToolCallID/ToolName; assistant messages may carry
// the tool calls the model requested.
type Message struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id,omitempty"`
	Channel    ChannelType    `json:"channel,omitempty"`
	ChatID     string         `json:"chat_id,omitempty"`
	SenderID   string         `json:"sender_id,omitempty"`
	Role       Role           `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// IsUser reports whether the message was authored by the user.
func (m *Message) IsUser() bool {
	return m.Role == RoleUser
}

// AutoMode reports whether the message is a synthetic auto-mode message.
func (m *Message) AutoMode() bool {
	if m == nil || m.Metadata == nil {
		return false
	}
	v, ok := m.Metadata[MetadataAutoMode].(bool)
	return ok && v
}

// ToolCall is a model-requested tool invocation. Identity is the ID; two
// calls sharing an ID within one response are treated as unrelated calls
// keyed by ID.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolDefinition is the machine-readable schema a tool exposes to the model.
// Parameters holds a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// AttachmentType categorizes an outbound attachment.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentDocument AttachmentType = "document"
	AttachmentAudio    AttachmentType = "audio"
)

// Attachment is a binary payload queued for delivery to the user's channel.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	Data     []byte         `json:"-"`
	Filename string         `json:"filename,omitempty"`
	MimeType string         `json:"mime_type,omitempty"`
	Caption  string         `json:"caption,omitempty"`
}
