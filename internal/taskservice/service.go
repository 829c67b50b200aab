// Package taskservice manages tasks, their subtasks, and projects.
package taskservice

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/mindweave/internal/apperr"
	"github.com/starford/mindweave/internal/models"
	"github.com/starford/mindweave/internal/store"
)

const maxTitleLen = 500

// Notifier receives task change events.
type Notifier interface {
	PublishTaskEvent(kind models.ChangeKind, id string)
}

// NewTask is the input of CreateTask. Empty status and priority default to
// todo and medium.
type NewTask struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
	Tags        []string            `json:"tags"`
	NoteID      string              `json:"note_id"`
	ProjectID   string              `json:"project_id"`
	Subtasks    []string            `json:"subtasks"`
}

// Validate checks NewTask fields.
func (t NewTask) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Title, validation.Required, validation.RuneLength(1, maxTitleLen)),
		validation.Field(&t.Status, validation.In(statusValues()...)),
		validation.Field(&t.Priority, validation.In(priorityValues()...)),
		validation.Field(&t.Subtasks, validation.Each(validation.Required, validation.RuneLength(1, maxTitleLen))),
	)
}

// TaskUpdate is a partial update; nil fields are left untouched. ClearDueDate
// removes the due date and wins over DueDate.
type TaskUpdate struct {
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	Status       *models.TaskStatus   `json:"status"`
	Priority     *models.TaskPriority `json:"priority"`
	DueDate      *time.Time           `json:"due_date"`
	ClearDueDate bool                 `json:"clear_due_date"`
	Tags         *[]string            `json:"tags"`
	NoteID       *string              `json:"note_id"`
	ProjectID    *string              `json:"project_id"`
}

// Validate checks TaskUpdate fields.
func (u TaskUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Title, validation.NilOrNotEmpty, validation.RuneLength(0, maxTitleLen)),
		validation.Field(&u.Status, validation.NilOrNotEmpty, validation.In(statusValues()...)),
		validation.Field(&u.Priority, validation.NilOrNotEmpty, validation.In(priorityValues()...)),
	)
}

// SubtaskUpdate changes a subtask. With both fields nil the subtask's
// completion is toggled.
type SubtaskUpdate struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

// NewProject is the input of CreateProject.
type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// Validate checks NewProject fields.
func (p NewProject) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.RuneLength(1, maxTitleLen)),
		validation.Field(&p.Color, validation.RuneLength(0, 32)),
	)
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the change event sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service implements task operations over the store.
type Service struct {
	db       *store.DB
	notifier Notifier
	now      func() time.Time
}

// NewService creates a task service over db.
func NewService(db *store.DB, opts ...Option) *Service {
	s := &Service{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask stores a new task.
func (s *Service) CreateTask(ctx context.Context, in NewTask) (*models.Task, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	now := s.now()
	t := models.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     utc(in.DueDate),
		Tags:        nonNil(in.Tags),
		NoteID:      in.NoteID,
		ProjectID:   in.ProjectID,
		Subtasks:    make([]models.SubTask, 0, len(in.Subtasks)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	for _, title := range in.Subtasks {
		t.Subtasks = append(t.Subtasks, models.SubTask{ID: uuid.NewString(), Title: title})
	}
	if err := s.db.InsertTask(ctx, t); err != nil {
		return nil, err
	}
	s.notify(models.ChangeCreated, t.ID)
	return &t, nil
}

// GetTask returns the task with id.
func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return s.db.GetTask(ctx, id)
}

// UpdateTask applies u to the task with id.
func (s *Service) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*models.Task, error) {
	if err := u.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.mutate(ctx, id, func(t *models.Task) error {
		if u.Title != nil {
			t.Title = *u.Title
		}
		if u.Description != nil {
			t.Description = *u.Description
		}
		if u.Status != nil {
			t.Status = *u.Status
		}
		if u.Priority != nil {
			t.Priority = *u.Priority
		}
		if u.DueDate != nil {
			t.DueDate = utc(u.DueDate)
		}
		if u.ClearDueDate {
			t.DueDate = nil
		}
		if u.Tags != nil {
			t.Tags = nonNil(*u.Tags)
		}
		if u.NoteID != nil {
			t.NoteID = *u.NoteID
		}
		if u.ProjectID != nil {
			t.ProjectID = *u.ProjectID
		}
		return nil
	})
}

// DeleteTask removes the task with id and its subtasks.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if err := s.db.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.notify(models.ChangeDeleted, id)
	return nil
}

// ListTasks returns tasks matching f, newest first.
func (s *Service) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	return s.db.ListTasks(ctx, f)
}

// TasksByStatus returns tasks in status.
func (s *Service) TasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	return s.db.ListTasks(ctx, store.TaskFilter{Status: status})
}

// TasksByProject returns tasks of the project with id.
func (s *Service) TasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	return s.db.ListTasks(ctx, store.TaskFilter{ProjectID: projectID})
}

// AddSubtask appends a subtask to the task with taskID.
func (s *Service) AddSubtask(ctx context.Context, taskID, title string) (*models.Task, error) {
	if err := validation.Validate(title, validation.Required, validation.RuneLength(1, maxTitleLen)); err != nil {
		return nil, invalid(fmt.Errorf("title: %w", err))
	}
	return s.mutate(ctx, taskID, func(t *models.Task) error {
		t.Subtasks = append(t.Subtasks, models.SubTask{ID: uuid.NewString(), Title: title})
		return nil
	})
}

// UpdateSubtask applies u to one subtask of the task with taskID.
func (s *Service) UpdateSubtask(ctx context.Context, taskID, subtaskID string, u SubtaskUpdate) (*models.Task, error) {
	if u.Title != nil && *u.Title == "" {
		return nil, invalid(fmt.Errorf("title: cannot be blank"))
	}
	return s.mutate(ctx, taskID, func(t *models.Task) error {
		i := subtaskIndex(t, subtaskID)
		if i < 0 {
			return apperr.ErrNotFound
		}
		sub := &t.Subtasks[i]
		if u.Title == nil && u.Completed == nil {
			sub.Completed = !sub.Completed
			return nil
		}
		if u.Title != nil {
			sub.Title = *u.Title
		}
		if u.Completed != nil {
			sub.Completed = *u.Completed
		}
		return nil
	})
}

// ToggleSubtask flips the completion of one subtask.
func (s *Service) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*models.Task, error) {
	return s.UpdateSubtask(ctx, taskID, subtaskID, SubtaskUpdate{})
}

// DeleteSubtask removes one subtask, keeping the order of the rest.
func (s *Service) DeleteSubtask(ctx context.Context, taskID, subtaskID string) (*models.Task, error) {
	return s.mutate(ctx, taskID, func(t *models.Task) error {
		i := subtaskIndex(t, subtaskID)
		if i < 0 {
			return apperr.ErrNotFound
		}
		t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
		return nil
	})
}

// CreateProject stores a new project.
func (s *Service) CreateProject(ctx context.Context, in NewProject) (*models.Project, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	p := models.Project{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		Tasks:       []string{},
		CreatedAt:   s.now(),
	}
	if err := s.db.InsertProject(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProject returns the project with id.
func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.db.GetProject(ctx, id)
}

// ListProjects returns every project with its task ids.
func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.db.ListProjects(ctx)
}

// mutate loads a task, applies fn, bumps updated_at, and saves it.
func (s *Service) mutate(ctx context.Context, id string, fn func(*models.Task) error) (*models.Task, error) {
	t, err := s.db.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	now := s.now()
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Millisecond)
	}
	t.UpdatedAt = now
	if err := s.db.UpdateTask(ctx, *t); err != nil {
		return nil, err
	}
	s.notify(models.ChangeUpdated, t.ID)
	return t, nil
}

func (s *Service) notify(kind models.ChangeKind, id string) {
	if s.notifier != nil {
		s.notifier.PublishTaskEvent(kind, id)
	}
}

func subtaskIndex(t *models.Task, id string) int {
	for i, sub := range t.Subtasks {
		if sub.ID == id {
			return i
		}
	}
	return -1
}

func statusValues() []any {
	out := make([]any, len(models.Statuses))
	for i, st := range models.Statuses {
		out[i] = st
	}
	return out
}

func priorityValues() []any {
	return []any{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func invalid(err error) error {
	return fmt.Errorf("%w: %s", apperr.ErrInvalid, err.Error())
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
