package taskservice

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/starford/mindweave/internal/models"
	"github.com/starford/mindweave/internal/store"
)

// DateLayout keys calendar days.
const DateLayout = "2006-01-02"

// Column is one kanban column.
type Column struct {
	Status models.TaskStatus `json:"status"`
	Tasks  []models.Task     `json:"tasks"`
}

// Board is the kanban view: one column per status in workflow order.
type Board struct {
	Columns []Column `json:"columns"`
}

// CalendarDay holds the tasks due on one date.
type CalendarDay struct {
	Date  string        `json:"date"`
	Tasks []models.Task `json:"tasks"`
}

// Calendar is the month view of due tasks.
type Calendar struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Days  []CalendarDay `json:"days"`
}

// GanttItem is one bar of the gantt view.
type GanttItem struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Status   models.TaskStatus `json:"status"`
	Start    time.Time         `json:"start"`
	End      time.Time         `json:"end"`
	Progress float64           `json:"progress"`
}

// Kanban groups every task by status. Columns keep the newest-first order.
func (s *Service) Kanban(ctx context.Context) (Board, error) {
	tasks, err := s.db.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return Board{}, err
	}
	byStatus := make(map[models.TaskStatus][]models.Task, len(models.Statuses))
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}
	board := Board{Columns: make([]Column, 0, len(models.Statuses))}
	for _, st := range models.Statuses {
		board.Columns = append(board.Columns, Column{Status: st, Tasks: nonNil(byStatus[st])})
	}
	return board, nil
}

// Calendar returns tasks due within month of year (UTC dates), grouped by
// day in date order.
func (s *Service) Calendar(ctx context.Context, year, month int) (Calendar, error) {
	if month < 1 || month > 12 {
		return Calendar{}, invalid(fmt.Errorf("month: must be between 1 and 12"))
	}
	if year < 1 || year > 9999 {
		return Calendar{}, invalid(fmt.Errorf("year: out of range"))
	}
	tasks, err := s.db.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return Calendar{}, err
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	byDay := make(map[string][]models.Task)
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		due := t.DueDate.UTC()
		if due.Before(start) || !due.Before(end) {
			continue
		}
		key := due.Format(DateLayout)
		byDay[key] = append(byDay[key], t)
	}

	cal := Calendar{Year: year, Month: month, Days: make([]CalendarDay, 0, len(byDay))}
	for day, ts := range byDay {
		cal.Days = append(cal.Days, CalendarDay{Date: day, Tasks: ts})
	}
	slices.SortFunc(cal.Days, func(a, b CalendarDay) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return cal, nil
}

// Gantt returns one bar per task with a due date, from creation to due,
// ordered by due date.
func (s *Service) Gantt(ctx context.Context) ([]GanttItem, error) {
	tasks, err := s.db.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	out := []GanttItem{}
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		start, end := t.CreatedAt, *t.DueDate
		if end.Before(start) {
			start = end
		}
		out = append(out, GanttItem{
			ID:       t.ID,
			Title:    t.Title,
			Status:   t.Status,
			Start:    start,
			End:      end,
			Progress: Progress(t),
		})
	}
	slices.SortStableFunc(out, func(a, b GanttItem) int {
		return a.End.Compare(b.End)
	})
	return out, nil
}

// Progress is the fraction of completed subtasks. A task without subtasks
// counts as 1 when done and 0 otherwise.
func Progress(t models.Task) float64 {
	if len(t.Subtasks) == 0 {
		if t.Status == models.StatusDone {
			return 1
		}
		return 0
	}
	done := 0
	for _, sub := range t.Subtasks {
		if sub.Completed {
			done++
		}
	}
	return float64(done) / float64(len(t.Subtasks))
}
