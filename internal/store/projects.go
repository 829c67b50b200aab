package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/mindweave/internal/apperr"
	"github.com/starford/mindweave/internal/models"
)

// InsertProject stores a new project.
func (db *DB) InsertProject(ctx context.Context, p models.Project) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Color, p.CreatedAt)
	if err != nil {
		return mapConstraint("insert project", err)
	}
	return nil
}

// GetProject returns the project with id, task ids included.
func (db *DB) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, color, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	ids, err := db.projectTaskIDs(ctx)
	if err != nil {
		return nil, err
	}
	p.Tasks = nonNil(ids[p.ID])
	return &p, nil
}

// ListProjects returns every project in creation order.
func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, description, color, created_at FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids, err := db.projectTaskIDs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tasks = nonNil(ids[out[i].ID])
	}
	return out, nil
}

func (db *DB) projectTaskIDs(ctx context.Context) (map[string][]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT project_id, id FROM tasks WHERE project_id IS NOT NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: project tasks: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var projectID, taskID string
		if err := rows.Scan(&projectID, &taskID); err != nil {
			return nil, err
		}
		out[projectID] = append(out[projectID], taskID)
	}
	return out, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
