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

type CheckupInput struct {
	EmployeeID      uuid.UUID
	Investigation   string
	AppointmentDate time.Time
	Status          models.CheckupStatus
	CompletedDate   *time.Time
	CertificatePath *string
}

// CheckupUpdate moves a checkup forward. Nil fields keep their value.
type CheckupUpdate struct {
	Status          models.CheckupStatus
	CompletedDate   *time.Time
	CertificatePath *string
}

type CheckupService struct {
	checkups   repository.CheckupRepository
	rules      []RecurrenceRule
	dispatcher *Dispatcher
}

func NewCheckupService(checkups repository.CheckupRepository, dispatcher *Dispatcher, rules ...RecurrenceRule) *CheckupService {
	return &CheckupService{checkups: checkups, rules: rules, dispatcher: dispatcher}
}

func checkupChange(c *models.HealthCheckup, typ realtime.EventType, action string, at models.ActionType) Change {
	return Change{
		Table:      "health_checkups",
		Type:       typ,
		Record:     c,
		EmployeeID: &c.EmployeeID,
		Action:     action,
		ActionType: at,
		Details:    fmt.Sprintf("%s on %s", c.Investigation, c.AppointmentDate.Format(time.DateOnly)),
	}
}

// Create records a checkup. One created as done with a completion date
// schedules its successor in the same transaction.
func (s *CheckupService) Create(ctx context.Context, scope tenancy.Scope, actor Actor, in CheckupInput) (*models.HealthCheckup, Outcome, error) {
	in.Investigation = strings.TrimSpace(in.Investigation)
	if in.Investigation == "" {
		return nil, Outcome{}, apperr.Validation("investigation is required")
	}
	if in.AppointmentDate.IsZero() {
		return nil, Outcome{}, apperr.Validation("appointment_date is required")
	}
	if in.Status == "" {
		in.Status = models.CheckupPlanned
	}
	if in.Status.Rank() < 0 {
		return nil, Outcome{}, apperr.Validation("unknown status %q", in.Status)
	}

	c, followUps, err := s.checkups.Create(ctx, scope, models.HealthCheckup{
		EmployeeID:      in.EmployeeID,
		Investigation:   in.Investigation,
		AppointmentDate: in.AppointmentDate,
		Status:          in.Status,
		CompletedDate:   in.CompletedDate,
		CertificatePath: in.CertificatePath,
	}, func(created models.HealthCheckup) []models.HealthCheckup {
		return s.spawn(models.HealthCheckup{}, created)
	})
	if err != nil {
		return nil, Outcome{}, err
	}
	out := s.dispatcher.After(ctx, scope, actor, checkupChange(c, realtime.Insert, "Checkup scheduled", models.ActionCreate))
	out.merge(s.announceFollowUps(ctx, scope, actor, c, followUps))
	return c, out, nil
}

func (s *CheckupService) spawn(before, after models.HealthCheckup) []models.HealthCheckup {
	var followUps []models.HealthCheckup
	for _, r := range s.rules {
		if r.Applies(before, after) {
			followUps = append(followUps, r.Next(after))
		}
	}
	return followUps
}

func (s *CheckupService) announceFollowUps(ctx context.Context, scope tenancy.Scope, actor Actor, prev *models.HealthCheckup, followUps []models.HealthCheckup) Outcome {
	var out Outcome
	for i := range followUps {
		f := &followUps[i]
		fc := checkupChange(f, realtime.Insert, "Follow-up checkup scheduled", models.ActionCreate)
		fc.Metadata = map[string]any{"previous_checkup_id": prev.ID.String()}
		out.merge(s.dispatcher.After(ctx, scope, actor, fc))
	}
	return out
}

func (s *CheckupService) Get(ctx context.Context, scope tenancy.Scope, checkupID uuid.UUID) (*models.HealthCheckup, error) {
	c, err := s.checkups.GetByID(ctx, scope, checkupID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("checkup %s: %w", checkupID, apperr.ErrNotFound)
	}
	return c, nil
}

func (s *CheckupService) List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.HealthCheckup, error) {
	return s.checkups.List(ctx, scope, l)
}

// transition applies u to the current row. Status moves forward only
// (planned → open → done, skipping allowed); staying put is allowed so a
// completion date can be corrected.
func (s *CheckupService) transition(u CheckupUpdate) repository.CheckupTransition {
	return func(current models.HealthCheckup) (models.HealthCheckup, []models.HealthCheckup, error) {
		next := current
		if u.Status != "" {
			if u.Status.Rank() < 0 {
				return next, nil, apperr.Validation("unknown status %q", u.Status)
			}
			if u.Status.Rank() < current.Status.Rank() {
				return next, nil, fmt.Errorf("%w: %s to %s", apperr.ErrInvalidTransition, current.Status, u.Status)
			}
			next.Status = u.Status
		}
		if u.CompletedDate != nil {
			next.CompletedDate = u.CompletedDate
		}
		if u.CertificatePath != nil {
			next.CertificatePath = u.CertificatePath
		}

		return next, s.spawn(current, next), nil
	}
}

// UpdateStatus applies u and any recurrence follow-ups in one transaction.
func (s *CheckupService) UpdateStatus(ctx context.Context, scope tenancy.Scope, actor Actor, checkupID uuid.UUID, u CheckupUpdate) (*models.HealthCheckup, []models.HealthCheckup, Outcome, error) {
	updated, followUps, err := s.checkups.ApplyTransition(ctx, scope, checkupID, s.transition(u))
	if err != nil {
		return nil, nil, Outcome{}, err
	}
	if updated == nil {
		return nil, nil, Outcome{}, fmt.Errorf("checkup %s: %w", checkupID, apperr.ErrNotFound)
	}

	ch := checkupChange(updated, realtime.Update, "Checkup status changed", models.ActionStatusChange)
	ch.Metadata = map[string]any{"status": string(updated.Status)}
	out := s.dispatcher.After(ctx, scope, actor, ch)
	out.merge(s.announceFollowUps(ctx, scope, actor, updated, followUps))
	return updated, followUps, out, nil
}

// Delete removes a checkup. It is destructive and must be confirmed.
func (s *CheckupService) Delete(ctx context.Context, scope tenancy.Scope, actor Actor, checkupID uuid.UUID, confirmed bool) (Outcome, error) {
	if !confirmed {
		return Outcome{}, apperr.ErrConfirmationRequired
	}
	c, err := s.Get(ctx, scope, checkupID)
	if err != nil {
		return Outcome{}, err
	}
	deleted, err := s.checkups.Delete(ctx, scope, checkupID)
	if err != nil {
		return Outcome{}, err
	}
	if !deleted {
		return Outcome{}, fmt.Errorf("checkup %s: %w", checkupID, apperr.ErrNotFound)
	}
	return s.dispatcher.After(ctx, scope, actor, checkupChange(c, realtime.Delete, "Checkup deleted", models.ActionDelete)), nil
}
