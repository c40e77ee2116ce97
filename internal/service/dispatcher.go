// Package service holds the mutation side of the dashboard: every write goes
// through a service method that validates it, calls the repository, and then
// hands the result to the Dispatcher.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/activity"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/realtime"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"go.uber.org/zap"
)

// Actor is the user performing a mutation. Name is cached on activity rows.
type Actor struct {
	ID   uuid.UUID
	Name string
}

// Change describes a committed mutation. An empty Action skips the activity
// log; an empty Table skips the realtime event.
type Change struct {
	Table  string
	Type   realtime.EventType
	Record any

	EmployeeID *uuid.UUID
	Action     string
	ActionType models.ActionType
	Details    string
	Metadata   map[string]any
}

// Outcome carries non-fatal problems back to the caller.
type Outcome struct {
	Warnings []string `json:"warnings,omitempty"`
}

func (o *Outcome) merge(other Outcome) {
	o.Warnings = append(o.Warnings, other.Warnings...)
}

type ActivityRecorder interface {
	Record(ctx context.Context, scope tenancy.Scope, e models.ActivityEntry) (*models.ActivityEntry, error)
}

type Dispatcher struct {
	activity  ActivityRecorder
	publisher realtime.Publisher
	logger    *zap.Logger
}

func NewDispatcher(recorder ActivityRecorder, publisher realtime.Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{activity: recorder, publisher: publisher, logger: logger}
}

// After runs the side effects of a committed mutation. It never fails: the
// mutation already happened, so problems become warnings (activity) or log
// lines (realtime).
func (d *Dispatcher) After(ctx context.Context, scope tenancy.Scope, actor Actor, ch Change) Outcome {
	var out Outcome

	if ch.Action != "" && d.activity != nil {
		entry, err := d.activity.Record(ctx, scope, models.ActivityEntry{
			EmployeeID: ch.EmployeeID,
			Action:     ch.Action,
			ActionType: ch.ActionType,
			Details:    ch.Details,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			Metadata:   ch.Metadata,
		})
		if err != nil {
			out.Warnings = append(out.Warnings, activity.UnavailableWarning)
		} else {
			d.publish(ctx, scope, "activity_logs", realtime.Insert, entry)
		}
	}

	if ch.Table != "" {
		d.publish(ctx, scope, ch.Table, ch.Type, ch.Record)
	}
	return out
}

// publish is fire-and-forget: subscribers that miss an event refetch.
func (d *Dispatcher) publish(ctx context.Context, scope tenancy.Scope, table string, typ realtime.EventType, record any) {
	if d.publisher == nil {
		return
	}
	e, err := realtime.NewEvent(table, typ, scope.TenantID(), record)
	if err == nil {
		err = d.publisher.Publish(context.WithoutCancel(ctx), e)
	}
	if err != nil {
		d.logger.Warn("realtime publish failed",
			zap.String("tenant_id", scope.TenantID().String()),
			zap.String("table", table),
			zap.Error(err),
		)
	}
}
