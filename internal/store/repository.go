// Package store keeps projects, their timeline snapshots, notices and local
// settings in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heimdex/heimdex-studio/internal/persist"
	"github.com/heimdex/heimdex-studio/internal/timeline"
)

type Project struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	State     *timeline.State `json:"timeline,omitempty"`
	Revision  int64           `json:"revision"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	DeleteProject(ctx context.Context, id string) error
	SaveSnapshot(ctx context.Context, projectID string, st *timeline.State) error

	RecordNotice(ctx context.Context, n persist.Notice) (persist.Notice, error)
	ListNotices(ctx context.Context, projectID string, limit int) ([]persist.Notice, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func NewID() string {
	return timeline.NewID()
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	if p.State == nil {
		p.State = timeline.NewState()
	}
	body, err := json.Marshal(p.State)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	if p.Revision == 0 {
		p.Revision = 1
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, timeline, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, string(body), p.Revision, p.CreatedAt.UTC().Format(time.RFC3339), p.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, timeline, revision, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*Project, error) {
	var p Project
	var body, createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &body, &p.Revision, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st timeline.State
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		return nil, fmt.Errorf("project %s: failed to decode timeline: %w", p.ID, err)
	}
	p.State = &st
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, timeline, revision, created_at, updated_at
		FROM projects ORDER BY updated_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

// SaveSnapshot replaces the project's timeline and bumps its revision.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, projectID string, st *timeline.State) error {
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET timeline = ?, revision = revision + 1, updated_at = ? WHERE id = ?
	`, string(body), time.Now().UTC().Format(time.RFC3339), projectID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", persist.ErrProjectNotFound, projectID)
	}
	return nil
}

func (r *SQLiteRepository) RecordNotice(ctx context.Context, n persist.Notice) (persist.Notice, error) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notices (project_id, kind, message, created_at) VALUES (?, ?, ?, ?)
	`, n.ProjectID, string(n.Kind), n.Message, n.At.UTC().Format(time.RFC3339))
	if err != nil {
		return n, err
	}
	n.ID, err = res.LastInsertId()
	return n, err
}

// ListNotices returns the newest notices for a project first.
func (r *SQLiteRepository) ListNotices(ctx context.Context, projectID string, limit int) ([]persist.Notice, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, kind, message, created_at
		FROM notices WHERE project_id = ? ORDER BY id DESC LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notices []persist.Notice
	for rows.Next() {
		var n persist.Notice
		var kind, createdAt string
		if err := rows.Scan(&n.ID, &n.ProjectID, &kind, &n.Message, &createdAt); err != nil {
			return nil, err
		}
		n.Kind = persist.NoticeKind(kind)
		n.At, _ = time.Parse(time.RFC3339, createdAt)
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
