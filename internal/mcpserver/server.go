// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes mindweave tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mindweave/internal/apperr"
	"github.com/starford/mindweave/internal/models"
	"github.com/starford/mindweave/internal/noteservice"
	"github.com/starford/mindweave/internal/store"
	"github.com/starford/mindweave/internal/taskservice"
)

const (
	syntaxURI         = "mindweave://note-syntax"
	defaultSearchSize = 20
)

// Server wraps the MCP server with mindweave tools.
type Server struct {
	mcp   *server.MCPServer
	notes *noteservice.Service
	tasks *taskservice.Service
}

// New creates a new MCP server with all mindweave tools registered.
func New(notes *noteservice.Service, tasks *taskservice.Service, version string) *Server {
	s := &Server{notes: notes, tasks: tasks}

	s.mcp = server.NewMCPServer(
		"Mindweave",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note with its tags, links and backlinks. Pass either id or title."),
		mcp.WithString("id", mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("Note title; the oldest note with this title is returned")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note. Content SHOULD follow the note syntax "+
			"([[wikilinks]], #tags, - [ ] checklists). Read it first via the get_note_syntax "+
			"tool or the "+syntaxURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("Markdown content")),
		mcp.WithString("folder_id", mcp.Description("Optional folder id")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note_syntax",
		mcp.WithDescription("Returns the mindweave note syntax. "+
			"Call this before creating notes so links and tags are recognized."),
	), s.getNoteSyntax)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List note titles, most recently updated first."),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("graph_stats",
		mcp.WithDescription("Tag counts, most connected notes and total link count."),
	), s.graphStats)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks, newest first."),
		mcp.WithString("status", mcp.Description("Optional status filter"),
			mcp.Enum(statusNames()...)),
		mcp.WithString("project_id", mcp.Description("Optional project id filter")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task. Status defaults to todo and priority to medium."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("priority", mcp.Description("Task priority"),
			mcp.Enum("low", "medium", "high", "urgent")),
		mcp.WithString("due_date", mcp.Description("Due date as YYYY-MM-DD")),
		mcp.WithString("project_id", mcp.Description("Optional project id")),
		mcp.WithString("note_id", mcp.Description("Optional note id")),
	), s.createTask)

	// Resource: note syntax.
	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Note Syntax",
			mcp.WithResourceDescription("Markup mindweave derives links, tags and checklists from."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.notes.SearchNotes(ctx, query, req.GetInt("limit", defaultSearchSize))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, title := req.GetString("id", ""), req.GetString("title", "")
	var (
		note *models.Note
		err  error
	)
	switch {
	case id != "":
		note, err = s.notes.GetNote(ctx, id)
	case title != "":
		note, err = s.notes.NoteByTitle(ctx, title)
	default:
		return mcp.NewToolResultError("id or title is required"), nil
	}
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(note), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.CreateNote(ctx, noteservice.NewNote{
		Title:    title,
		Content:  req.GetString("content", ""),
		FolderID: req.GetString("folder_id", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", note.Title, note.ID)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.notes.ListNotes(ctx, store.NoteFilter{Tag: req.GetString("tag", "")})
	if err != nil {
		return toolError(err), nil
	}
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, n.ID+"\t"+n.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getNoteSyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteSyntax), nil
}

func (s *Server) readNoteSyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     NoteSyntax,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.notes.Backlinks(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, 0, len(refs))
	for _, r := range refs {
		lines = append(lines, r.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) graphStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.notes.Stats(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(st), nil
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := s.tasks.ListTasks(ctx, store.TaskFilter{
		Status:    models.TaskStatus(req.GetString("status", "")),
		ProjectID: req.GetString("project_id", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(tasks), nil
}

func (s *Server) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := taskservice.NewTask{
		Title:       title,
		Description: req.GetString("description", ""),
		Priority:    models.TaskPriority(req.GetString("priority", "")),
		ProjectID:   req.GetString("project_id", ""),
		NoteID:      req.GetString("note_id", ""),
	}
	if raw := req.GetString("due_date", ""); raw != "" {
		due, err := time.Parse(taskservice.DateLayout, raw)
		if err != nil {
			return mcp.NewToolResultError("due_date must be YYYY-MM-DD"), nil
		}
		in.DueDate = &due
	}
	task, err := s.tasks.CreateTask(ctx, in)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(task), nil
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func statusNames() []string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = string(s)
	}
	return names
}
