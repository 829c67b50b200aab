package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindweave/internal/models"
	"github.com/starford/mindweave/internal/store"
	"github.com/starford/mindweave/internal/taskservice"
)

// ListTasks handles GET /api/tasks.
//
//	@Summary		List tasks, newest first
//	@Tags			tasks
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"
//	@Param			project	query		string	false	"Filter by project id"
//	@Param			note	query		string	false	"Filter by note id"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Success		200		{object}	TaskListResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := h.tasks.ListTasks(r.Context(), store.TaskFilter{
		Status:    models.TaskStatus(q.Get("status")),
		ProjectID: q.Get("project"),
		NoteID:    q.Get("note"),
		Tag:       q.Get("tag"),
	})
	if err != nil {
		writeError(w, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks})
}

// CreateTask handles POST /api/tasks.
//
//	@Summary		Create a task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		taskservice.NewTask	true	"Task to create"
//	@Success		201		{object}	models.Task
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskservice.NewTask
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.tasks.CreateTask(r.Context(), req)
	if err != nil {
		writeError(w, "create task", err, slog.String("title", req.Title))
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// GetTask handles GET /api/tasks/{id}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := h.tasks.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, "get task", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask handles PATCH /api/tasks/{id}.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req taskservice.TaskUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.tasks.UpdateTask(r.Context(), id, req)
	if err != nil {
		writeError(w, "update task", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.tasks.DeleteTask(r.Context(), id); err != nil {
		writeError(w, "delete task", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSubtask handles POST /api/tasks/{id}/subtasks.
func (h *Handler) AddSubtask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req CreateSubtaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.tasks.AddSubtask(r.Context(), id, req.Title)
	if err != nil {
		writeError(w, "add subtask", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// UpdateSubtask handles PATCH /api/tasks/{id}/subtasks/{sid}. An empty
// object toggles completion.
func (h *Handler) UpdateSubtask(w http.ResponseWriter, r *http.Request) {
	id, sid := chi.URLParam(r, "id"), chi.URLParam(r, "sid")
	var req taskservice.SubtaskUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.tasks.UpdateSubtask(r.Context(), id, sid, req)
	if err != nil {
		writeError(w, "update subtask", err, slog.String("id", id), slog.String("subtask", sid))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteSubtask handles DELETE /api/tasks/{id}/subtasks/{sid}.
func (h *Handler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	id, sid := chi.URLParam(r, "id"), chi.URLParam(r, "sid")
	task, err := h.tasks.DeleteSubtask(r.Context(), id, sid)
	if err != nil {
		writeError(w, "delete subtask", err, slog.String("id", id), slog.String("subtask", sid))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ListProjects handles GET /api/projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.tasks.ListProjects(r.Context())
	if err != nil {
		writeError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: projects})
}

// CreateProject handles POST /api/projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req taskservice.NewProject
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.tasks.CreateProject(r.Context(), req)
	if err != nil {
		writeError(w, "create project", err, slog.String("name", req.Name))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Kanban handles GET /api/views/kanban.
func (h *Handler) Kanban(w http.ResponseWriter, r *http.Request) {
	board, err := h.tasks.Kanban(r.Context())
	if err != nil {
		writeError(w, "kanban", err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// Calendar handles GET /api/views/calendar. Year and month default to the
// current UTC month.
//
//	@Summary		Tasks due in a month, grouped by day
//	@Tags			views
//	@Produce		json
//	@Param			year	query		int	false	"Year"
//	@Param			month	query		int	false	"Month 1-12"
//	@Success		200		{object}	taskservice.Calendar
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/views/calendar [get]
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, ok := intParam(w, r, "year", now.Year())
	if !ok {
		return
	}
	month, ok := intParam(w, r, "month", int(now.Month()))
	if !ok {
		return
	}
	cal, err := h.tasks.Calendar(r.Context(), year, month)
	if err != nil {
		writeError(w, "calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// Gantt handles GET /api/views/gantt.
func (h *Handler) Gantt(w http.ResponseWriter, r *http.Request) {
	items, err := h.tasks.Gantt(r.Context())
	if err != nil {
		writeError(w, "gantt", err)
		return
	}
	writeJSON(w, http.StatusOK, GanttResponse{Items: items})
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(name+" must be an integer"))
		return 0, false
	}
	return v, true
}
