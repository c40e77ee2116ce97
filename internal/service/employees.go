package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/realtime"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

const (
	maxTagLength     = 50
	maxNoteLength    = 5000
	maxProfileFields = 50
)

type EmployeeService struct {
	employees  repository.EmployeeRepository
	notes      repository.NoteRepository
	dispatcher *Dispatcher
}

func NewEmployeeService(employees repository.EmployeeRepository, notes repository.NoteRepository, dispatcher *Dispatcher) *EmployeeService {
	return &EmployeeService{
		employees:  employees,
		notes:      notes,
		dispatcher: dispatcher,
	}
}

func employeeChange(e *models.Employee, typ realtime.EventType, action string, at models.ActionType) Change {
	return Change{
		Table:      "employees",
		Type:       typ,
		Record:     e,
		EmployeeID: &e.ID,
		Action:     action,
		ActionType: at,
		Details:    fmt.Sprintf("%s (%s)", e.FullName, e.EmployeeNumber),
	}
}

func normalizeEmployee(in *models.EmployeeInput) error {
	in.EmployeeNumber = strings.TrimSpace(in.EmployeeNumber)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	if in.EmployeeNumber == "" {
		return apperr.Validation("employee_number is required")
	}
	if in.FullName == "" {
		return apperr.Validation("full_name is required")
	}
	return nil
}

func (s *EmployeeService) Create(ctx context.Context, scope tenancy.Scope, actor Actor, in models.EmployeeInput) (*models.Employee, Outcome, error) {
	if err := normalizeEmployee(&in); err != nil {
		return nil, Outcome{}, err
	}
	e, err := s.employees.Create(ctx, scope, in)
	if err != nil {
		return nil, Outcome{}, err
	}
	out := s.dispatcher.After(ctx, scope, actor, employeeChange(e, realtime.Insert, "Employee created", models.ActionCreate))
	return e, out, nil
}

func (s *EmployeeService) Get(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) (*models.Employee, error) {
	e, err := s.employees.GetByID(ctx, scope, employeeID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("employee %s: %w", employeeID, apperr.ErrNotFound)
	}
	return e, nil
}

func (s *EmployeeService) List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Employee, error) {
	return s.employees.List(ctx, scope, l)
}

func (s *EmployeeService) Update(ctx context.Context, scope tenancy.Scope, actor Actor, employeeID uuid.UUID, in models.EmployeeInput) (*models.Employee, Outcome, error) {
	if err := normalizeEmployee(&in); err != nil {
		return nil, Outcome{}, err
	}
	e, err := s.employees.Update(ctx, scope, employeeID, in)
	if err != nil {
		return nil, Outcome{}, err
	}
	if e == nil {
		return nil, Outcome{}, fmt.Errorf("employee %s: %w", employeeID, apperr.ErrNotFound)
	}
	out := s.dispatcher.After(ctx, scope, actor, employeeChange(e, realtime.Update, "Employee updated", models.ActionUpdate))
	return e, out, nil
}

// SetActive soft-(de)activates an employee. Employees are never hard
// deleted. Reactivation counts against the employee cap.
func (s *EmployeeService) SetActive(ctx context.Context, scope tenancy.Scope, actor Actor, employeeID uuid.UUID, active bool) (*models.Employee, Outcome, error) {
	current, err := s.Get(ctx, scope, employeeID)
	if err != nil {
		return nil, Outcome{}, err
	}
	if current.Active == active {
		return current, Outcome{}, nil
	}
	e, err := s.employees.SetActive(ctx, scope, employeeID, active)
	if err != nil {
		return nil, Outcome{}, err
	}
	if e == nil {
		return nil, Outcome{}, fmt.Errorf("employee %s: %w", employeeID, apperr.ErrNotFound)
	}
	action := "Employee deactivated"
	if active {
		action = "Employee activated"
	}
	out := s.dispatcher.After(ctx, scope, actor, employeeChange(e, realtime.Update, action, models.ActionStatusChange))
	return e, out, nil
}

func normalizeTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", apperr.Validation("tag must not be empty")
	}
	if len(tag) > maxTagLength {
		return "", apperr.Validation("tag longer than %d characters", maxTagLength)
	}
	return tag, nil
}

// AddTag is a no-op when the tag is already present.
func (s *EmployeeService) AddTag(ctx context.Context, scope tenancy.Scope, actor Actor, employeeID uuid.UUID, tag string) (*models.Employee, Outcome, error) {
	tag, err := normalizeTag(tag)
	if err != nil {
		return nil, Outcome{}, err
	}
	current, err := s.Get(ctx, scope, employeeID)
	if err != nil {
		return nil, Outcome{}, err
	}
	if slices.Contains(current.Tags, tag) {
		return current, Outcome{}, nil
	}
	return s.changeTags(ctx, scope, actor, employeeID, tag, true)
}

// RemoveTag is a no-op when the tag is absent.
func (s *EmployeeService) RemoveTag(ctx context.Context, scope tenancy.Scope, actor Actor, employeeID uuid.UUID, tag string) (*models.Employee, Outcome, error) {
	tag = strings.TrimSpace(tag)
	current, err := s.Get(ctx, scope, employeeID)
	if err != nil {
		return nil, Outcome{}, err
	}
	if !slices.Contains(current.Tags, tag) {
		return current, Outcome{}, nil
	}
	return s.changeTags(ctx, scope, actor, employeeID, tag, false)
}

func (s *EmployeeService) changeTags(ctx context.Context, scope tenancy.Scope, actor Actor, employeeID uuid.UUID, tag string, add bool) (*models.Employee, Outcome, error) {
	var e *models.Employee
	var err error
	action := "Tag removed"
	if add {
		action = "Tag added"
		e, err = s.employees.AddTag(ctx, scope, employeeID, tag)
	} else {
		e, err = s.employees.RemoveTag(ctx, scope, employeeID, tag)
	}
	if err != nil {
		return nil, Outcome{}, err
	}
	if e == nil {
		return nil, Outcome{}, fmt.Errorf("employee %s: %w", employeeID, apperr.ErrNotFound)
	}
	ch := employeeChange(e, realtime.Update, action, models.ActionUpdate)
	ch.Details = tag
	return e, s.dispatcher.After(ctx, scope, actor, ch), nil
}

var profileFieldTypes = []string{"text", "number", "date", "boolean"}

// SetProfileFields replaces the custom attributes. Fields without an id get
// a new one so clients can address them later.
func (s *EmployeeService) SetProfileFields(ctx context.Context, scope tenancy.Scope, actor Actor, employeeID uuid.UUID, fields []models.ProfileField) (*models.Employee, Outcome, error) {
	if len(fields) > maxProfileFields {
		return nil, Outcome{}, apperr.Validation("at most %d profile fields", maxProfileFields)
	}
	seen := make(map[string]bool, len(fields))
	for i := range fields {
		f := &fields[i]
		f.Label = strings.TrimSpace(f.Label)
		if f.Label == "" {
			return nil, Outcome{}, apperr.Validation("profile field %d has no label", i)
		}
		if !slices.Contains(profileFieldTypes, f.Type) {
			return nil, Outcome{}, apperr.Validation("profile field %q has unknown type %q", f.Label, f.Type)
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if seen[f.ID] {
			return nil, Outcome{}, apperr.Validation("duplicate profile field id %q", f.ID)
		}
		seen[f.ID] = true
	}

	e, err := s.employees.SetProfileFields(ctx, scope, employeeID, fields)
	if err != nil {
		return nil, Outcome{}, err
	}
	if e == nil {
		return nil, Outcome{}, fmt.Errorf("employee %s: %w", employeeID, apperr.ErrNotFound)
	}
	ch := employeeChange(e, realtime.Update, "Profile fields updated", models.ActionUpdate)
	ch.Metadata = map[string]any{"field_count": len(fields)}
	return e, s.dispatcher.After(ctx, scope, actor, ch), nil
}

// AddNote appends to the employee's note thread.
func (s *EmployeeService) AddNote(ctx context.Context, scope tenancy.Scope, actor Actor, employeeID uuid.UUID, content string, parentReplyID *int64) (*models.Note, Outcome, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, Outcome{}, apperr.Validation("note content is required")
	}
	if len(content) > maxNoteLength {
		return nil, Outcome{}, apperr.Validation("note longer than %d characters", maxNoteLength)
	}

	n, err := s.notes.Create(ctx, scope, models.Note{
		EmployeeID:    employeeID,
		AuthorID:      actor.ID,
		AuthorName:    actor.Name,
		Content:       content,
		ParentReplyID: parentReplyID,
	})
	if err != nil {
		return nil, Outcome{}, err
	}

	action := "Note added"
	if parentReplyID != nil {
		action = "Note reply added"
	}
	out := s.dispatcher.After(ctx, scope, actor, Change{
		Table:      "employee_notes",
		Type:       realtime.Insert,
		Record:     n,
		EmployeeID: &employeeID,
		Action:     action,
		ActionType: models.ActionCreate,
		Details:    truncate(content, 120),
	})
	return n, out, nil
}

func (s *EmployeeService) ListNotes(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) ([]models.Note, error) {
	if _, err := s.Get(ctx, scope, employeeID); err != nil {
		return nil, err
	}
	return s.notes.ListByEmployee(ctx, scope, employeeID)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
