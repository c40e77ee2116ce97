package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/realtime"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type TaskInput struct {
	Title       string
	Description string
	AssigneeID  *uuid.UUID
	Priority    models.TaskPriority
	Status      models.TaskStatus
	DueDate     *time.Time
}

type TaskService struct {
	tasks      repository.TaskRepository
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewTaskService(tasks repository.TaskRepository, dispatcher *Dispatcher) *TaskService {
	return &TaskService{tasks: tasks, dispatcher: dispatcher, now: time.Now}
}

func taskChange(t *models.Task, typ realtime.EventType, action string, at models.ActionType, details string) Change {
	return Change{
		Table:      "tasks",
		Type:       typ,
		Record:     t,
		EmployeeID: t.AssigneeID,
		Action:     action,
		ActionType: at,
		Details:    details,
	}
}

func (s *TaskService) Create(ctx context.Context, scope tenancy.Scope, actor Actor, in TaskInput) (*models.Task, Outcome, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, Outcome{}, apperr.Validation("title is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, Outcome{}, apperr.Validation("unknown priority %q", in.Priority)
	}
	if in.Status == "" {
		in.Status = models.TaskPending
	}
	if !in.Status.Valid() {
		return nil, Outcome{}, apperr.Validation("unknown status %q", in.Status)
	}

	t, err := s.tasks.Create(ctx, scope, models.Task{
		Title:       in.Title,
		Description: in.Description,
		AssigneeID:  in.AssigneeID,
		Priority:    in.Priority,
		Status:      in.Status,
		DueDate:     in.DueDate,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		return nil, Outcome{}, err
	}
	out := s.dispatcher.After(ctx, scope, actor, taskChange(t, realtime.Insert, "Task created", models.ActionCreate, t.Title))
	return t, out, nil
}

func (s *TaskService) Get(ctx context.Context, scope tenancy.Scope, taskID uuid.UUID) (*models.Task, error) {
	t, err := s.tasks.GetByID(ctx, scope, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	return t, nil
}

func (s *TaskService) List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Task, error) {
	return s.tasks.List(ctx, scope, l)
}

// SetStatus applies a status toggle issued at requestedAt (zero means now).
// Toggles are ordered by when they were issued, not when they arrive: a
// request older than the last applied one is skipped and the current task is
// returned with applied=false. A requestedAt ahead of the server clock is
// pulled back to now, otherwise one fast client clock would freeze the task.
func (s *TaskService) SetStatus(ctx context.Context, scope tenancy.Scope, actor Actor, taskID uuid.UUID, status models.TaskStatus, requestedAt time.Time) (*models.Task, bool, Outcome, error) {
	if !status.Valid() {
		return nil, false, Outcome{}, apperr.Validation("unknown status %q", status)
	}
	if now := s.now(); requestedAt.IsZero() || requestedAt.After(now) {
		requestedAt = now
	}

	t, applied, err := s.tasks.SetStatus(ctx, scope, taskID, status, requestedAt)
	if err != nil {
		return nil, false, Outcome{}, err
	}
	if t == nil {
		return nil, false, Outcome{}, fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	if !applied {
		return t, false, Outcome{}, nil
	}

	ch := taskChange(t, realtime.Update, "Task status changed", models.ActionStatusChange, fmt.Sprintf("%s: %s", t.Title, t.Status))
	ch.Metadata = map[string]any{"status": string(t.Status)}
	return t, true, s.dispatcher.After(ctx, scope, actor, ch), nil
}

func (s *TaskService) Delete(ctx context.Context, scope tenancy.Scope, actor Actor, taskID uuid.UUID) (Outcome, error) {
	t, err := s.Get(ctx, scope, taskID)
	if err != nil {
		return Outcome{}, err
	}
	deleted, err := s.tasks.Delete(ctx, scope, taskID)
	if err != nil {
		return Outcome{}, err
	}
	if !deleted {
		return Outcome{}, fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	return s.dispatcher.After(ctx, scope, actor, taskChange(t, realtime.Delete, "Task deleted", models.ActionDelete, t.Title)), nil
}
