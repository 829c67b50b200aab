package api

import (
	"github.com/starford/mindweave/internal/graph"
	"github.com/starford/mindweave/internal/models"
	"github.com/starford/mindweave/internal/noteservice"
	"github.com/starford/mindweave/internal/parser"
	"github.com/starford/mindweave/internal/store"
	"github.com/starford/mindweave/internal/taskservice"
)

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// BacklinksResponse lists the notes linking to a note.
type BacklinksResponse struct {
	Backlinks []noteservice.NoteRef `json:"backlinks" validate:"required"`
}

// ChecklistResponse lists the checklist items of a note.
type ChecklistResponse struct {
	Items []parser.ChecklistItem `json:"items" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results" validate:"required"`
}

// TagsResponse lists tags with note counts.
type TagsResponse struct {
	Tags []graph.TagCount `json:"tags" validate:"required"`
}

// PreviewRequest is the request body for rendering a preview.
type PreviewRequest struct {
	Content string `json:"content" example:"# Title\n**bold** [[Other]]"`
}

// HTMLResponse carries rendered HTML.
type HTMLResponse struct {
	HTML string `json:"html" validate:"required"`
}

// CreateFolderRequest is the request body for creating a folder.
type CreateFolderRequest struct {
	Name     string `json:"name" example:"Work" validate:"required"`
	ParentID string `json:"parent_id"`
}

// FolderListResponse wraps folder listings.
type FolderListResponse struct {
	Folders []models.Folder `json:"folders" validate:"required"`
}

// TaskListResponse wraps task listings.
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks" validate:"required"`
}

// CreateSubtaskRequest is the request body for adding a subtask.
type CreateSubtaskRequest struct {
	Title string `json:"title" example:"Write tests" validate:"required"`
}

// ProjectListResponse wraps project listings.
type ProjectListResponse struct {
	Projects []models.Project `json:"projects" validate:"required"`
}

// GanttResponse wraps gantt bars.
type GanttResponse struct {
	Items []taskservice.GanttItem `json:"items" validate:"required"`
}
