package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

// ComplianceService manages audits, trainings and measures. These records
// have no realtime channel; they only show up in dashboard counts and the
// activity trail.
type ComplianceService struct {
	audits     repository.AuditRepository
	trainings  repository.TrainingRepository
	measures   repository.MeasureRepository
	dispatcher *Dispatcher
}

func NewComplianceService(audits repository.AuditRepository, trainings repository.TrainingRepository, measures repository.MeasureRepository, dispatcher *Dispatcher) *ComplianceService {
	return &ComplianceService{audits: audits, trainings: trainings, measures: measures, dispatcher: dispatcher}
}

func requireTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation("title is required")
	}
	return title, nil
}

func (s *ComplianceService) CreateAudit(ctx context.Context, scope tenancy.Scope, actor Actor, title string, scheduledFor *time.Time) (*models.Audit, Outcome, error) {
	title, err := requireTitle(title)
	if err != nil {
		return nil, Outcome{}, err
	}
	a, err := s.audits.Create(ctx, scope, models.Audit{Title: title, Status: models.AuditPlanned, ScheduledFor: scheduledFor})
	if err != nil {
		return nil, Outcome{}, err
	}
	out := s.dispatcher.After(ctx, scope, actor, Change{
		Action: "Audit planned", ActionType: models.ActionCreate, Details: a.Title,
	})
	return a, out, nil
}

func (s *ComplianceService) SetAuditStatus(ctx context.Context, scope tenancy.Scope, actor Actor, auditID uuid.UUID, status models.AuditStatus) (*models.Audit, Outcome, error) {
	if !status.Valid() {
		return nil, Outcome{}, apperr.Validation("unknown audit status %q", status)
	}
	a, err := s.audits.SetStatus(ctx, scope, auditID, status)
	if err != nil {
		return nil, Outcome{}, err
	}
	if a == nil {
		return nil, Outcome{}, fmt.Errorf("audit %s: %w", auditID, apperr.ErrNotFound)
	}
	out := s.dispatcher.After(ctx, scope, actor, Change{
		Action:     "Audit status changed",
		ActionType: models.ActionStatusChange,
		Details:    fmt.Sprintf("%s: %s", a.Title, a.Status),
		Metadata:   map[string]any{"status": string(a.Status)},
	})
	return a, out, nil
}

func (s *ComplianceService) CreateTraining(ctx context.Context, scope tenancy.Scope, actor Actor, employeeID *uuid.UUID, title string, validUntil *time.Time) (*models.Training, Outcome, error) {
	title, err := requireTitle(title)
	if err != nil {
		return nil, Outcome{}, err
	}
	t, err := s.trainings.Create(ctx, scope, models.Training{EmployeeID: employeeID, Title: title, ValidUntil: validUntil})
	if err != nil {
		return nil, Outcome{}, err
	}
	out := s.dispatcher.After(ctx, scope, actor, Change{
		EmployeeID: t.EmployeeID, Action: "Training recorded", ActionType: models.ActionCreate, Details: t.Title,
	})
	return t, out, nil
}

func (s *ComplianceService) CreateMeasure(ctx context.Context, scope tenancy.Scope, actor Actor, title string, dueDate *time.Time) (*models.Measure, Outcome, error) {
	title, err := requireTitle(title)
	if err != nil {
		return nil, Outcome{}, err
	}
	m, err := s.measures.Create(ctx, scope, models.Measure{Title: title, Status: models.MeasureOpen, DueDate: dueDate})
	if err != nil {
		return nil, Outcome{}, err
	}
	out := s.dispatcher.After(ctx, scope, actor, Change{
		Action: "Measure created", ActionType: models.ActionCreate, Details: m.Title,
	})
	return m, out, nil
}

func (s *ComplianceService) SetMeasureStatus(ctx context.Context, scope tenancy.Scope, actor Actor, measureID uuid.UUID, status models.MeasureStatus) (*models.Measure, Outcome, error) {
	if !status.Valid() {
		return nil, Outcome{}, apperr.Validation("unknown measure status %q", status)
	}
	m, err := s.measures.SetStatus(ctx, scope, measureID, status)
	if err != nil {
		return nil, Outcome{}, err
	}
	if m == nil {
		return nil, Outcome{}, fmt.Errorf("measure %s: %w", measureID, apperr.ErrNotFound)
	}
	out := s.dispatcher.After(ctx, scope, actor, Change{
		Action:     "Measure status changed",
		ActionType: models.ActionStatusChange,
		Details:    fmt.Sprintf("%s: %s", m.Title, m.Status),
		Metadata:   map[string]any{"status": string(m.Status)},
	})
	return m, out, nil
}
