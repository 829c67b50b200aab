package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mindweave/internal/graph"
	"github.com/starford/mindweave/internal/models"
	"github.com/starford/mindweave/internal/noteservice"
	"github.com/starford/mindweave/internal/taskservice"
	"github.com/starford/mindweave/internal/testutil"
)

func testServer(t *testing.T) (*Server, *noteservice.Service) {
	t.Helper()
	db := testutil.TestDB(t)
	notes := noteservice.NewService(db)
	return New(notes, taskservice.NewService(db), "test"), notes
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so handlers are invoked directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"search_notes":    srv.searchNotes,
		"read_note":       srv.readNote,
		"create_note":     srv.createNote,
		"get_note_syntax": srv.getNoteSyntax,
		"list_notes":      srv.listNotes,
		"get_backlinks":   srv.getBacklinks,
		"graph_stats":     srv.graphStats,
		"list_tasks":      srv.listTasks,
		"create_task":     srv.createTask,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]any{
		"title":   "Test",
		"content": "Hello #greeting",
	})
	if r.IsError || !strings.HasPrefix(resultText(r), "created: Test (") {
		t.Fatalf("create result = %q", resultText(r))
	}

	r = callTool(t, srv, "read_note", map[string]any{"title": "Test"})
	var note models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	if note.Content != "Hello #greeting" || len(note.Tags) != 1 {
		t.Errorf("note = %+v", note)
	}

	r = callTool(t, srv, "read_note", map[string]any{"id": note.ID})
	if r.IsError {
		t.Errorf("read by id failed: %s", resultText(r))
	}
}

func TestCreateNoteMissingTitle(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_note", map[string]any{"content": "x"})
	if !r.IsError {
		t.Error("expected error for missing title")
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_note", map[string]any{"id": "nope"})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("missing note = %q", resultText(r))
	}
	r = callTool(t, srv, "read_note", map[string]any{})
	if !r.IsError {
		t.Error("expected error without id or title")
	}
}

func TestListAndSearchNotes(t *testing.T) {
	srv, notes := testServer(t)
	ctx := context.Background()
	if _, err := notes.CreateNote(ctx, noteservice.NewNote{Title: "A", Content: "alpha #go"}); err != nil {
		t.Fatal(err)
	}
	if _, err := notes.CreateNote(ctx, noteservice.NewNote{Title: "B", Content: "beta"}); err != nil {
		t.Fatal(err)
	}

	text := resultText(callTool(t, srv, "list_notes", map[string]any{}))
	if strings.Count(text, "\n") != 1 {
		t.Errorf("list = %q, want two lines", text)
	}
	text = resultText(callTool(t, srv, "list_notes", map[string]any{"tag": "go"}))
	if !strings.HasSuffix(text, "\tA") {
		t.Errorf("tag list = %q", text)
	}

	r := callTool(t, srv, "search_notes", map[string]any{"query": "alpha", "limit": float64(5)})
	if r.IsError || !strings.Contains(resultText(r), `"title": "A"`) {
		t.Errorf("search = %q", resultText(r))
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, notes := testServer(t)
	ctx := context.Background()
	b, err := notes.CreateNote(ctx, noteservice.NewNote{Title: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := notes.CreateNote(ctx, noteservice.NewNote{Title: "a", Content: "links to [[b]]"}); err != nil {
		t.Fatal(err)
	}

	text := resultText(callTool(t, srv, "get_backlinks", map[string]any{"id": b.ID}))
	if text != "a" {
		t.Errorf("backlinks = %q, want a", text)
	}
}

func TestGraphStats(t *testing.T) {
	srv, notes := testServer(t)
	if _, err := notes.CreateNote(context.Background(), noteservice.NewNote{Title: "a", Content: "[[b]] #x"}); err != nil {
		t.Fatal(err)
	}

	var st graph.Stats
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "graph_stats", nil))), &st); err != nil {
		t.Fatal(err)
	}
	if st.TotalConnections != 1 || len(st.TagCounts) != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCreateAndListTasks(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_task", map[string]any{
		"title":    "Ship",
		"priority": "high",
		"due_date": "2026-04-01",
	})
	if r.IsError {
		t.Fatalf("create task: %s", resultText(r))
	}
	var task models.Task
	if err := json.Unmarshal([]byte(resultText(r)), &task); err != nil {
		t.Fatal(err)
	}
	if task.Priority != models.PriorityHigh || task.DueDate == nil {
		t.Errorf("task = %+v", task)
	}

	r = callTool(t, srv, "create_task", map[string]any{"title": "x", "due_date": "tomorrow"})
	if !r.IsError {
		t.Error("expected error for bad due date")
	}
	r = callTool(t, srv, "create_task", map[string]any{"title": "x", "priority": "whenever"})
	if !r.IsError {
		t.Error("expected error for bad priority")
	}

	var tasks []models.Task
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "list_tasks", map[string]any{"status": "todo"}))), &tasks); err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Errorf("tasks = %d, want 1", len(tasks))
	}
}

func TestNoteSyntax(t *testing.T) {
	srv, _ := testServer(t)

	if text := resultText(callTool(t, srv, "get_note_syntax", nil)); text != NoteSyntax {
		t.Error("syntax tool did not return NoteSyntax")
	}

	contents, err := srv.readNoteSyntaxResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != syntaxURI || tc.Text != NoteSyntax {
		t.Errorf("resource = %+v", contents[0])
	}
}
