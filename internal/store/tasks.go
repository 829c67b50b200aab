package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/mindweave/internal/apperr"
	"github.com/starford/mindweave/internal/models"
)

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Status    models.TaskStatus
	ProjectID string
	NoteID    string
	Tag       string
}

const taskColumns = `id, title, description, status, priority, due_date, tags, note_id, project_id, created_at, updated_at`

// InsertTask stores a task together with its subtasks.
func (db *DB) InsertTask(ctx context.Context, t models.Task) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), nullTime(t.DueDate),
		jsonList(t.Tags), nullString(t.NoteID), nullString(t.ProjectID), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return mapConstraint("insert task", err)
	}
	if err := insertSubtasks(ctx, tx, t.ID, t.Subtasks); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateTask replaces every stored column of a task and its subtask list.
func (db *DB) UpdateTask(ctx context.Context, t models.Task) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks SET
			title       = ?,
			description = ?,
			status      = ?,
			priority    = ?,
			due_date    = ?,
			tags        = ?,
			note_id     = ?,
			project_id  = ?,
			updated_at  = ?
		WHERE id = ?
	`, t.Title, t.Description, string(t.Status), string(t.Priority), nullTime(t.DueDate),
		jsonList(t.Tags), nullString(t.NoteID), nullString(t.ProjectID), t.UpdatedAt, t.ID)
	if err != nil {
		return mapConstraint("update task", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ?`, t.ID); err != nil {
		return fmt.Errorf("store: clear subtasks: %w", err)
	}
	if err := insertSubtasks(ctx, tx, t.ID, t.Subtasks); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteTask removes a task. Its subtasks go with it.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	return requireRow(res)
}

// GetTask returns the task with id or apperr.ErrNotFound.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	subs, err := db.subtasksFor(ctx, []string{t.ID})
	if err != nil {
		return nil, err
	}
	t.Subtasks = nonNil(subs[t.ID])
	return t, nil
}

// ListTasks returns tasks matching f, newest first.
func (db *DB) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(f.Status))
	}
	if f.ProjectID != "" {
		where = append(where, `project_id = ?`)
		args = append(args, f.ProjectID)
	}
	if f.NoteID != "" {
		where = append(where, `note_id = ?`)
		args = append(args, f.NoteID)
	}
	if f.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE json_each.value = ?)`)
		args = append(args, f.Tag)
	}

	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	out := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	subs, err := db.subtasksFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Subtasks = nonNil(subs[out[i].ID])
	}
	return out, nil
}

func insertSubtasks(ctx context.Context, tx *sql.Tx, taskID string, subs []models.SubTask) error {
	for i, s := range subs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO subtasks (id, task_id, title, completed, position) VALUES (?, ?, ?, ?, ?)`,
			s.ID, taskID, s.Title, s.Completed, i)
		if err != nil {
			return mapConstraint("insert subtask", err)
		}
	}
	return nil
}

func (db *DB) subtasksFor(ctx context.Context, taskIDs []string) (map[string][]models.SubTask, error) {
	out := make(map[string][]models.SubTask)
	if len(taskIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(taskIDs)), ",")
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT task_id, id, title, completed FROM subtasks
		 WHERE task_id IN (`+placeholders+`) ORDER BY task_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list subtasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			taskID string
			s      models.SubTask
		)
		if err := rows.Scan(&taskID, &s.ID, &s.Title, &s.Completed); err != nil {
			return nil, err
		}
		out[taskID] = append(out[taskID], s)
	}
	return out, rows.Err()
}

func scanTask(s scanner) (*models.Task, error) {
	var (
		t         models.Task
		status    string
		priority  string
		due       sql.NullTime
		tags      string
		noteID    sql.NullString
		projectID sql.NullString
	)
	err := s.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &due, &tags,
		&noteID, &projectID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan task: %w", err)
	}
	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	if t.Tags, err = parseList(tags); err != nil {
		return nil, err
	}
	t.NoteID = noteID.String
	t.ProjectID = projectID.String
	t.Subtasks = []models.SubTask{}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// mapConstraint turns SQLite constraint failures into apperr sentinels.
func mapConstraint(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return apperr.ErrAlreadyExists
	case strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("%w: %s", apperr.ErrInvalid, msg)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
