package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindweave/internal/graph"
	"github.com/starford/mindweave/internal/noteservice"
	"github.com/starford/mindweave/internal/store"
	"github.com/starford/mindweave/internal/taskservice"
)

// Handler holds API route handlers.
type Handler struct {
	notes *noteservice.Service
	tasks *taskservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(notes *noteservice.Service, tasks *taskservice.Service) *Handler {
	return &Handler{notes: notes, tasks: tasks}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, most recently updated first
//	@Tags			notes
//	@Produce		json
//	@Param			tag			query		string	false	"Filter by tag"
//	@Param			folder		query		string	false	"Filter by folder id"
//	@Param			favorite	query		bool	false	"Filter by favorite flag"
//	@Success		200			{object}	NoteListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.NoteFilter{Tag: q.Get("tag"), FolderID: q.Get("folder")}
	if raw := q.Get("favorite"); raw != "" {
		fav, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("favorite must be a boolean"))
			return
		}
		f.Favorite = &fav
	}

	notes, err := h.notes.ListNotes(r.Context(), f)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note with backlinks
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.notes.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", etag(note.Checksum))
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		noteservice.NewNote	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteservice.NewNote
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.notes.CreateNote(r.Context(), req)
	if err != nil {
		writeError(w, "create note", err, slog.String("title", req.Title))
		return
	}
	w.Header().Set("ETag", etag(note.Checksum))
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Partially update a note with optional optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string					true	"Note id"
//	@Param			If-Match	header		string					false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		noteservice.NoteUpdate	true	"Fields to change"
//	@Success		200			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req noteservice.NoteUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.notes.UpdateNote(r.Context(), id, req, ifMatch(r))
	if err != nil {
		writeError(w, "update note", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", etag(note.Checksum))
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.notes.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete note", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Backlinks handles GET /api/notes/{id}/backlinks.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	refs, err := h.notes.Backlinks(r.Context(), id)
	if err != nil {
		writeError(w, "backlinks", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: refs})
}

// Document handles GET /api/notes/{id}/document.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	html, err := h.notes.Document(r.Context(), id)
	if err != nil {
		writeError(w, "render document", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, HTMLResponse{HTML: html})
}

// Checklist handles GET /api/notes/{id}/checklist.
func (h *Handler) Checklist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	items, err := h.notes.Checklist(r.Context(), id)
	if err != nil {
		writeError(w, "checklist", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, ChecklistResponse{Items: items})
}

// Search handles GET /api/search.
//
//	@Summary		Search note titles and content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.notes.SearchNotes(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Tags handles GET /api/tags.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.notes.Tags(r.Context())
	if err != nil {
		writeError(w, "tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// Preview handles POST /api/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, HTMLResponse{HTML: h.notes.Preview(req.Content)})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the note graph
//	@Tags			graph
//	@Produce		json
//	@Param			tags	query		bool	false	"Include tag nodes"
//	@Success		200		{object}	graph.Graph
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	includeTags, _ := strconv.ParseBool(r.URL.Query().Get("tags"))
	g, err := h.notes.Graph(r.Context(), graph.Options{IncludeTags: includeTags})
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GraphStats handles GET /api/graph/stats.
func (h *Handler) GraphStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.notes.Stats(r.Context())
	if err != nil {
		writeError(w, "graph stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListFolders handles GET /api/folders.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.notes.ListFolders(r.Context())
	if err != nil {
		writeError(w, "list folders", err)
		return
	}
	writeJSON(w, http.StatusOK, FolderListResponse{Folders: folders})
}

// CreateFolder handles POST /api/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.notes.CreateFolder(r.Context(), req.Name, req.ParentID)
	if err != nil {
		writeError(w, "create folder", err, slog.String("name", req.Name))
		return
	}
	writeJSON(w, http.StatusCreated, f)
}
