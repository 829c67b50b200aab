package taskservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/mindweave/internal/apperr"
	"github.com/starford/mindweave/internal/models"
	"github.com/starford/mindweave/internal/store"
	"github.com/starford/mindweave/internal/testutil"
)

type recorder struct {
	kinds []models.ChangeKind
}

func (r *recorder) PublishTaskEvent(kind models.ChangeKind, _ string) {
	r.kinds = append(r.kinds, kind)
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(testutil.StepClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), time.Second))}, opts...)
	return NewService(testutil.TestDB(t), opts...)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 15, 0, 0, 0, time.UTC)
	return &t
}

func TestCreateTask_Defaults(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, WithNotifier(rec))
	task, err := svc.CreateTask(context.Background(), NewTask{Title: "Write docs", Subtasks: []string{"outline", "draft"}})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != models.StatusTodo || task.Priority != models.PriorityMedium {
		t.Errorf("defaults = %s/%s", task.Status, task.Priority)
	}
	if task.Tags == nil || len(task.Subtasks) != 2 {
		t.Errorf("task = %+v", task)
	}
	if len(rec.kinds) != 1 || rec.kinds[0] != models.ChangeCreated {
		t.Errorf("events = %v", rec.kinds)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	cases := map[string]NewTask{
		"missing title":   {},
		"bad status":      {Title: "x", Status: "someday"},
		"bad priority":    {Title: "x", Priority: "critical"},
		"blank subtask":   {Title: "x", Subtasks: []string{""}},
		"unknown project": {Title: "x", ProjectID: "ghost"},
	}
	for name, in := range cases {
		if _, err := svc.CreateTask(ctx, in); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("%s: err = %v, want ErrInvalid", name, err)
		}
	}
}

func TestUpdateTask(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	task, _ := svc.CreateTask(ctx, NewTask{Title: "Ship", DueDate: date(2024, 6, 1)})

	status := models.StatusInProgress
	tags := []string{"release"}
	got, err := svc.UpdateTask(ctx, task.ID, TaskUpdate{Status: &status, Tags: &tags})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if got.Status != status || len(got.Tags) != 1 || got.DueDate == nil {
		t.Errorf("after update: %+v", got)
	}
	if !got.UpdatedAt.After(task.UpdatedAt) {
		t.Error("updated_at should advance")
	}

	cleared, err := svc.UpdateTask(ctx, task.ID, TaskUpdate{ClearDueDate: true})
	if err != nil {
		t.Fatal(err)
	}
	if cleared.DueDate != nil {
		t.Errorf("due date = %v, want cleared", cleared.DueDate)
	}

	bad := models.TaskStatus("paused")
	if _, err := svc.UpdateTask(ctx, task.ID, TaskUpdate{Status: &bad}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
	if _, err := svc.UpdateTask(ctx, "missing", TaskUpdate{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSubtasks(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	task, _ := svc.CreateTask(ctx, NewTask{Title: "Trip"})

	task, err := svc.AddSubtask(ctx, task.ID, "book flight")
	if err != nil {
		t.Fatal(err)
	}
	task, _ = svc.AddSubtask(ctx, task.ID, "pack")
	if len(task.Subtasks) != 2 {
		t.Fatalf("subtasks = %+v", task.Subtasks)
	}
	first := task.Subtasks[0].ID

	task, _ = svc.ToggleSubtask(ctx, task.ID, first)
	if !task.Subtasks[0].Completed {
		t.Error("toggle should complete the subtask")
	}
	if p := Progress(*task); p != 0.5 {
		t.Errorf("progress = %v, want 0.5", p)
	}

	done := false
	task, _ = svc.UpdateSubtask(ctx, task.ID, first, SubtaskUpdate{Completed: &done})
	if task.Subtasks[0].Completed {
		t.Error("explicit completed=false ignored")
	}

	task, err = svc.DeleteSubtask(ctx, task.ID, first)
	if err != nil {
		t.Fatal(err)
	}
	if len(task.Subtasks) != 1 || task.Subtasks[0].Title != "pack" {
		t.Errorf("after delete: %+v", task.Subtasks)
	}
	if _, err := svc.DeleteSubtask(ctx, task.ID, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.AddSubtask(ctx, task.ID, ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}

	stored, _ := svc.GetTask(ctx, task.ID)
	if len(stored.Subtasks) != 1 {
		t.Errorf("stored subtasks = %+v", stored.Subtasks)
	}
}

func TestProjectsAndFilters(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	p, err := svc.CreateProject(ctx, NewProject{Name: "Launch", Color: "#ff0000"})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := svc.CreateTask(ctx, NewTask{Title: "a", ProjectID: p.ID})
	b, _ := svc.CreateTask(ctx, NewTask{Title: "b", ProjectID: p.ID, Status: models.StatusDone})
	_, _ = svc.CreateTask(ctx, NewTask{Title: "c"})

	byProject, _ := svc.TasksByProject(ctx, p.ID)
	if len(byProject) != 2 || byProject[0].ID != b.ID {
		t.Errorf("by project = %+v", byProject)
	}
	done, _ := svc.TasksByStatus(ctx, models.StatusDone)
	if len(done) != 1 || done[0].ID != b.ID {
		t.Errorf("done = %+v", done)
	}

	got, _ := svc.GetProject(ctx, p.ID)
	if len(got.Tasks) != 2 || got.Tasks[0] != a.ID {
		t.Errorf("project tasks = %q", got.Tasks)
	}
	all, _ := svc.ListProjects(ctx)
	if len(all) != 1 {
		t.Errorf("projects = %+v", all)
	}
	list, _ := svc.ListTasks(ctx, store.TaskFilter{})
	if len(list) != 3 {
		t.Errorf("tasks = %d", len(list))
	}

	if _, err := svc.CreateProject(ctx, NewProject{}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}

	if err := svc.DeleteTask(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteTask(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestKanban_FixedColumnOrder(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, _ = svc.CreateTask(ctx, NewTask{Title: "x", Status: models.StatusBlocked})
	_, _ = svc.CreateTask(ctx, NewTask{Title: "y"})

	board, err := svc.Kanban(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.TaskStatus{models.StatusTodo, models.StatusInProgress, models.StatusBlocked, models.StatusDone}
	if len(board.Columns) != len(want) {
		t.Fatalf("columns = %d", len(board.Columns))
	}
	for i, col := range board.Columns {
		if col.Status != want[i] {
			t.Errorf("column %d = %s, want %s", i, col.Status, want[i])
		}
		if col.Tasks == nil {
			t.Errorf("column %s tasks nil", col.Status)
		}
	}
	if len(board.Columns[0].Tasks) != 1 || len(board.Columns[2].Tasks) != 1 {
		t.Errorf("board = %+v", board)
	}
}

func TestCalendar(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, _ = svc.CreateTask(ctx, NewTask{Title: "late", DueDate: date(2024, 6, 20)})
	_, _ = svc.CreateTask(ctx, NewTask{Title: "early", DueDate: date(2024, 6, 3)})
	_, _ = svc.CreateTask(ctx, NewTask{Title: "same day", DueDate: date(2024, 6, 3)})
	_, _ = svc.CreateTask(ctx, NewTask{Title: "next month", DueDate: date(2024, 7, 1)})
	_, _ = svc.CreateTask(ctx, NewTask{Title: "undated"})

	cal, err := svc.Calendar(ctx, 2024, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(cal.Days) != 2 {
		t.Fatalf("days = %+v", cal.Days)
	}
	if cal.Days[0].Date != "2024-06-03" || len(cal.Days[0].Tasks) != 2 {
		t.Errorf("first day = %+v", cal.Days[0])
	}
	if cal.Days[1].Date != "2024-06-20" {
		t.Errorf("second day = %s", cal.Days[1].Date)
	}

	if _, err := svc.Calendar(ctx, 2024, 13); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestGantt(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, _ = svc.CreateTask(ctx, NewTask{Title: "later", DueDate: date(2024, 9, 1)})
	_, _ = svc.CreateTask(ctx, NewTask{Title: "sooner", DueDate: date(2024, 7, 1), Status: models.StatusDone})
	_, _ = svc.CreateTask(ctx, NewTask{Title: "undated"})
	_, _ = svc.CreateTask(ctx, NewTask{Title: "overdue", DueDate: date(2024, 1, 1)})

	items, err := svc.Gantt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Title != "overdue" || items[1].Title != "sooner" || items[2].Title != "later" {
		t.Errorf("order = %s %s %s", items[0].Title, items[1].Title, items[2].Title)
	}
	if !items[0].Start.Equal(items[0].End) {
		t.Error("bar due before creation should start at its due date")
	}
	if items[1].Progress != 1 {
		t.Errorf("done task progress = %v, want 1", items[1].Progress)
	}
}

func TestProgress(t *testing.T) {
	cases := []struct {
		task models.Task
		want float64
	}{
		{models.Task{Status: models.StatusTodo}, 0},
		{models.Task{Status: models.StatusDone}, 1},
		{models.Task{Subtasks: []models.SubTask{{Completed: true}, {}, {}, {Completed: true}}}, 0.5},
	}
	for i, c := range cases {
		if got := Progress(c.task); got != c.want {
			t.Errorf("case %d: Progress = %v, want %v", i, got, c.want)
		}
	}
}
