// Package models defines the domain types for mindweave.
package models

import "time"

// Note is a markdown note. Tags and Links are always derived from Content;
// Backlinks are computed from the whole collection and never stored.
type Note struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	Links      []string  `json:"links"`
	Backlinks  []string  `json:"backlinks"`
	FolderID   string    `json:"folder_id,omitempty"`
	IsFavorite bool      `json:"is_favorite"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Folder groups notes. Folders nest through ParentID.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
