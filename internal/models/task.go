package models

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Task statuses, in kanban column order.
const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusBlocked    TaskStatus = "blocked"
	StatusDone       TaskStatus = "done"
)

// Statuses lists every status in board order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusBlocked, StatusDone}

// TaskPriority ranks tasks.
type TaskPriority string

// Task priorities.
const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Task is a unit of work, optionally attached to a note and a project.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Tags        []string     `json:"tags"`
	NoteID      string       `json:"note_id,omitempty"`
	ProjectID   string       `json:"project_id,omitempty"`
	Subtasks    []SubTask    `json:"subtasks"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SubTask is a checklist item of a task.
type SubTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Project groups tasks. Tasks is derived from the tasks' ProjectID.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Tasks       []string  `json:"tasks"`
	CreatedAt   time.Time `json:"created_at"`
}
