package plans

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/golemcore/agentd/pkg/models"
)

const planSchema = `
CREATE TABLE IF NOT EXISTS plans (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL,
	status     TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	steps      TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plans_chat ON plans(chat_id, status);
`

// SQLiteStore persists plans in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(planSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, plan *models.Plan) error {
	steps := plan.Steps
	if steps == nil {
		steps = []models.PlanStep{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode plan steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, chat_id, status, title, steps, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   title = excluded.title,
		   steps = excluded.steps,
		   updated_at = excluded.updated_at`,
		plan.ID, plan.ChatID, string(plan.Status), plan.Title,
		string(stepsJSON), plan.CreatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Plan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, status, title, steps, created_at, updated_at
		 FROM plans WHERE id = ?`, id)
	return scanPlan(row)
}

func (s *SQLiteStore) ActiveForChat(ctx context.Context, chatID string) (*models.Plan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, status, title, steps, created_at, updated_at
		 FROM plans WHERE chat_id = ? AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		chatID, string(models.PlanCollecting))
	return scanPlan(row)
}

func scanPlan(row *sql.Row) (*models.Plan, error) {
	var (
		plan      models.Plan
		status    string
		stepsJSON string
	)
	err := row.Scan(&plan.ID, &plan.ChatID, &status, &plan.Title,
		&stepsJSON, &plan.CreatedAt, &plan.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	plan.Status = models.PlanStatus(status)
	if err := json.Unmarshal([]byte(stepsJSON), &plan.Steps); err != nil {
		return nil, fmt.Errorf("decode plan steps: %w", err)
	}
	return &plan, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
