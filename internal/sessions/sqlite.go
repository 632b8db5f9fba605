package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/golemcore/agentd/pkg/models"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	channel    TEXT NOT NULL,
	chat_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE (channel, chat_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES sessions(id),
	role         TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	tool_call_id TEXT NOT NULL DEFAULT '',
	tool_name    TEXT NOT NULL DEFAULT '',
	tool_calls   TEXT NOT NULL DEFAULT '[]',
	metadata     TEXT NOT NULL DEFAULT '{}',
	sender_id    TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
`

// SQLiteStore persists sessions in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc's driver is not safe for concurrent writers on one
	// connection pool without serialization.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, channel models.ChannelType, chatID string) (*models.Session, error) {
	session, err := s.getByChat(ctx, channel, chatID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	session = &models.Session{
		ID:        uuid.NewString(),
		Channel:   channel,
		ChatID:    chatID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SQLiteStore) getByChat(ctx context.Context, channel models.ChannelType, chatID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel, chat_id, title, metadata, created_at, updated_at
		 FROM sessions WHERE channel = ? AND chat_id = ?`, string(channel), chatID)
	return scanSession(row)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel, chat_id, title, metadata, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var (
		session models.Session
		channel string
		meta    string
	)
	err := row.Scan(&session.ID, &channel, &session.ChatID, &session.Title,
		&meta, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.Channel = models.ChannelType(channel)
	if err := json.Unmarshal([]byte(meta), &session.Metadata); err != nil {
		return nil, fmt.Errorf("decode session metadata: %w", err)
	}
	return &session, nil
}

func (s *SQLiteStore) Save(ctx context.Context, session *models.Session) error {
	meta := session.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, channel, chat_id, title, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   metadata = excluded.metadata,
		   updated_at = excluded.updated_at`,
		session.ID, string(session.Channel), session.ChatID, session.Title,
		string(metaJSON), session.CreatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return err
	}

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	toolCalls := msg.ToolCalls
	if toolCalls == nil {
		toolCalls = []models.ToolCall{}
	}
	callsJSON, err := json.Marshal(toolCalls)
	if err != nil {
		return fmt.Errorf("encode tool calls: %w", err)
	}
	meta := msg.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode message metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, tool_call_id, tool_name, tool_calls, metadata, sender_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sessionID, string(msg.Role), msg.Content, msg.ToolCallID, msg.ToolName,
		string(callsJSON), string(metaJSON), msg.SenderID, createdAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	query := `SELECT id, session_id, role, content, tool_call_id, tool_name, tool_calls, metadata, sender_id, created_at
		 FROM messages WHERE session_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		var (
			msg       models.Message
			role      string
			callsJSON string
			metaJSON  string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content,
			&msg.ToolCallID, &msg.ToolName, &callsJSON, &metaJSON,
			&msg.SenderID, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = models.Role(role)
		if err := json.Unmarshal([]byte(callsJSON), &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("decode tool calls: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &msg.Metadata); err != nil {
			return nil, fmt.Errorf("decode message metadata: %w", err)
		}
		if len(msg.ToolCalls) == 0 {
			msg.ToolCalls = nil
		}
		if len(msg.Metadata) == 0 {
			msg.Metadata = nil
		}
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	// The query returns newest first so LIMIT keeps the most recent
	// slice; reverse back into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
