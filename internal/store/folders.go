package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/mindweave/internal/apperr"
	"github.com/starford/mindweave/internal/models"
)

// InsertFolder stores a new folder.
func (db *DB) InsertFolder(ctx context.Context, f models.Folder) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO folders (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.Name, nullString(f.ParentID), f.CreatedAt)
	if err != nil {
		return mapConstraint("insert folder", err)
	}
	return nil
}

// GetFolder returns the folder with id or apperr.ErrNotFound.
func (db *DB) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	var (
		f        models.Folder
		parentID sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, parent_id, created_at FROM folders WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &parentID, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get folder: %w", err)
	}
	f.ParentID = parentID.String
	return &f, nil
}

// ListFolders returns every folder in creation order.
func (db *DB) ListFolders(ctx context.Context) ([]models.Folder, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, parent_id, created_at FROM folders ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list folders: %w", err)
	}
	defer rows.Close()

	out := []models.Folder{}
	for rows.Next() {
		var (
			f        models.Folder
			parentID sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Name, &parentID, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.ParentID = parentID.String
		out = append(out, f)
	}
	return out, rows.Err()
}
