// Package activity appends and reads the per-tenant audit trail.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/observ"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"go.uber.org/zap"
)

const (
	MaxEntries     = 100
	DefaultTimeout = 3 * time.Second
)

// UnavailableWarning is what callers show when an entry could not be written.
const UnavailableWarning = "activity log not available"

type Writer struct {
	store   repository.ActivityRepository
	logger  *zap.Logger
	metrics *observ.Metrics
	timeout time.Duration
}

func NewWriter(store repository.ActivityRepository, logger *zap.Logger, metrics *observ.Metrics) *Writer {
	return &Writer{
		store:   store,
		logger:  logger,
		metrics: metrics,
		timeout: DefaultTimeout,
	}
}

// Record appends e. The mutation it documents has already committed, so the
// write runs on a context that ignores request cancellation and is bounded
// by its own timeout. A failure is logged and returned; callers turn it into
// a warning and never undo the mutation.
func (w *Writer) Record(ctx context.Context, scope tenancy.Scope, e models.ActivityEntry) (*models.ActivityEntry, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	stored, err := w.store.Append(ctx, scope, e)
	if err != nil {
		w.metrics.ActivityFailed()
		w.logger.Warn("activity log write failed",
			zap.String("tenant_id", scope.TenantID().String()),
			zap.String("action", e.Action),
			zap.String("action_type", string(e.ActionType)),
			zap.Error(err),
		)
		return nil, err
	}
	return stored, nil
}

// ListForEmployee returns the newest entries first. limit is clamped to
// 1..MaxEntries; zero means MaxEntries.
func (w *Writer) ListForEmployee(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, limit int) ([]models.ActivityEntry, error) {
	return w.store.ListByEmployee(ctx, scope, employeeID, clamp(limit))
}

func (w *Writer) ListRecent(ctx context.Context, scope tenancy.Scope, limit int) ([]models.ActivityEntry, error) {
	return w.store.ListRecent(ctx, scope, clamp(limit))
}

func clamp(limit int) int {
	if limit <= 0 || limit > MaxEntries {
		return MaxEntries
	}
	return limit
}
