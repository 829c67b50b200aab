package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/mindweave/internal/apperr"
	"github.com/starford/mindweave/internal/models"
)

// SearchResult is one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// NoteFilter narrows ListNotes. Zero values match everything.
type NoteFilter struct {
	Tag      string
	FolderID string
	Favorite *bool
}

const noteColumns = `id, title, content, tags, links, folder_id, is_favorite, checksum, created_at, updated_at`

// InsertNote stores a new note and its FTS entry.
func (db *DB) InsertNote(ctx context.Context, n models.Note) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Content, jsonList(n.Tags), jsonList(n.Links), nullString(n.FolderID),
		n.IsFavorite, n.Checksum, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return mapConstraint("insert note", err)
	}
	if err := ftsUpsert(tx, n.ID, n.Title, n.Content); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateNote replaces every stored column of an existing note.
func (db *DB) UpdateNote(ctx context.Context, n models.Note) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE notes SET
			title       = ?,
			content     = ?,
			tags        = ?,
			links       = ?,
			folder_id   = ?,
			is_favorite = ?,
			checksum    = ?,
			updated_at  = ?
		WHERE id = ?
	`, n.Title, n.Content, jsonList(n.Tags), jsonList(n.Links), nullString(n.FolderID),
		n.IsFavorite, n.Checksum, n.UpdatedAt, n.ID)
	if err != nil {
		return mapConstraint("update note", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if err := ftsUpsert(tx, n.ID, n.Title, n.Content); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNote removes a note and its FTS entry. Tasks pointing at it are
// detached by the foreign key.
func (db *DB) DeleteNote(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// GetNote returns the note with id or apperr.ErrNotFound.
func (db *DB) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

// FindNoteByTitle returns the oldest note titled title or apperr.ErrNotFound.
func (db *DB) FindNoteByTitle(ctx context.Context, title string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE title = ? ORDER BY created_at, id LIMIT 1`, title)
	return scanNote(row)
}

// ListNotes returns notes matching f, most recently updated first.
func (db *DB) ListNotes(ctx context.Context, f NoteFilter) ([]models.Note, error) {
	var (
		where []string
		args  []any
	)
	if f.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`)
		args = append(args, f.Tag)
	}
	if f.FolderID != "" {
		where = append(where, `folder_id = ?`)
		args = append(args, f.FolderID)
	}
	if f.Favorite != nil {
		where = append(where, `is_favorite = ?`)
		args = append(args, *f.Favorite)
	}

	q := `SELECT ` + noteColumns + ` FROM notes`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY updated_at DESC, id`

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.Note, error) {
	var (
		n         models.Note
		tags      string
		links     string
		folderID  sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.Scan(&n.ID, &n.Title, &n.Content, &tags, &links, &folderID,
		&n.IsFavorite, &n.Checksum, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan note: %w", err)
	}
	if n.Tags, err = parseList(tags); err != nil {
		return nil, err
	}
	if n.Links, err = parseList(links); err != nil {
		return nil, err
	}
	n.Backlinks = []string{}
	n.FolderID = folderID.String
	n.CreatedAt = createdAt
	n.UpdatedAt = updatedAt
	return &n, nil
}

func jsonList(s []string) string {
	if s == nil {
		s = []string{}
	}
	b, _ := json.Marshal(s)
	return string(b)
}

func parseList(raw string) ([]string, error) {
	out := []string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("store: decode list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
