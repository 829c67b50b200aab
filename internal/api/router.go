package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindweave/internal/noteservice"
	"github.com/starford/mindweave/internal/taskservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(notes *noteservice.Service, tasks *taskservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(notes, tasks)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetNote)
			r.Patch("/", h.UpdateNote)
			r.Delete("/", h.DeleteNote)
			r.Get("/backlinks", h.Backlinks)
			r.Get("/document", h.Document)
			r.Get("/checklist", h.Checklist)
		})
	})

	r.Get("/search", h.Search)
	r.Get("/tags", h.Tags)
	r.Post("/preview", h.Preview)

	r.Get("/graph", h.Graph)
	r.Get("/graph/stats", h.GraphStats)

	r.Get("/folders", h.ListFolders)
	r.Post("/folders", h.CreateFolder)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetTask)
			r.Patch("/", h.UpdateTask)
			r.Delete("/", h.DeleteTask)
			r.Post("/subtasks", h.AddSubtask)
			r.Patch("/subtasks/{sid}", h.UpdateSubtask)
			r.Delete("/subtasks/{sid}", h.DeleteSubtask)
		})
	})

	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)

	r.Get("/views/kanban", h.Kanban)
	r.Get("/views/calendar", h.Calendar)
	r.Get("/views/gantt", h.Gantt)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
