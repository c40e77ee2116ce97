package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

// Conventions shared by every implementation:
//   - Tenant-owned data is addressed through a tenancy.Scope. A zero Scope
//     fails with apperr.ErrNoTenant before any SQL runs.
//   - Single-row lookups return nil, nil when the row does not exist (or
//     belongs to another tenant, which is the same thing from the caller's
//     point of view).
//   - Lists return an empty slice, never nil.

// CompanyRepository manages tenants. It is not tenant-scoped: companies are
// created during setup and administered by super admins.
type CompanyRepository interface {
	// CreateForOwner inserts a company and makes ownerID its admin in one
	// transaction. Fails with apperr.ErrConflict if the owner already has one.
	CreateForOwner(ctx context.Context, name string, ownerID uuid.UUID) (*models.Company, error)
	GetByID(ctx context.Context, companyID uuid.UUID) (*models.Company, error)
	List(ctx context.Context) ([]models.Company, error)
	UpdateSubscription(ctx context.Context, companyID uuid.UUID, sub models.Subscription) (*models.Company, error)
}

// UserRepository handles logins. Lookups are global because they run
// before any tenant is known.
type UserRepository interface {
	Create(ctx context.Context, email, displayName, passwordHash string) (*models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type DepartmentRepository interface {
	Create(ctx context.Context, scope tenancy.Scope, name string) (*models.Department, error)
	List(ctx context.Context, scope tenancy.Scope) ([]models.Department, error)
}

type EmployeeRepository interface {
	// Create and SetActive(true) fail with ErrLimitReached once the company's
	// active headcount reaches its employee cap.
	Create(ctx context.Context, scope tenancy.Scope, in models.EmployeeInput) (*models.Employee, error)
	GetByID(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) (*models.Employee, error)
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Employee, error)
	Update(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, in models.EmployeeInput) (*models.Employee, error)
	SetActive(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, active bool) (*models.Employee, error)
	// AddTag is a no-op when the tag is already present.
	AddTag(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, tag string) (*models.Employee, error)
	// RemoveTag is a no-op when the tag is absent.
	RemoveTag(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, tag string) (*models.Employee, error)
	SetProfileFields(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, fields []models.ProfileField) (*models.Employee, error)
}

type NoteRepository interface {
	Create(ctx context.Context, scope tenancy.Scope, n models.Note) (*models.Note, error)
	// ListByEmployee returns notes oldest first.
	ListByEmployee(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) ([]models.Note, error)
}

type TaskRepository interface {
	Create(ctx context.Context, scope tenancy.Scope, t models.Task) (*models.Task, error)
	GetByID(ctx context.Context, scope tenancy.Scope, taskID uuid.UUID) (*models.Task, error)
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Task, error)
	// SetStatus persists status only if requestedAt is newer than the last
	// applied status request. It returns the current row and whether the
	// write was applied.
	SetStatus(ctx context.Context, scope tenancy.Scope, taskID uuid.UUID, status models.TaskStatus, requestedAt time.Time) (*models.Task, bool, error)
	Delete(ctx context.Context, scope tenancy.Scope, taskID uuid.UUID) (bool, error)
}

// CheckupTransition receives the locked current row and returns the row to
// store plus any follow-up checkups to insert in the same transaction.
type CheckupTransition func(current models.HealthCheckup) (models.HealthCheckup, []models.HealthCheckup, error)

// CheckupFollowUps receives a freshly inserted checkup and returns the
// follow-ups to insert in the same transaction.
type CheckupFollowUps func(created models.HealthCheckup) []models.HealthCheckup

type CheckupRepository interface {
	Create(ctx context.Context, scope tenancy.Scope, c models.HealthCheckup, followUps CheckupFollowUps) (*models.HealthCheckup, []models.HealthCheckup, error)
	GetByID(ctx context.Context, scope tenancy.Scope, checkupID uuid.UUID) (*models.HealthCheckup, error)
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.HealthCheckup, error)
	// ApplyTransition returns nil, nil, nil when the checkup does not exist.
	ApplyTransition(ctx context.Context, scope tenancy.Scope, checkupID uuid.UUID, fn CheckupTransition) (*models.HealthCheckup, []models.HealthCheckup, error)
	Delete(ctx context.Context, scope tenancy.Scope, checkupID uuid.UUID) (bool, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, scope tenancy.Scope, d models.Document) (*models.Document, error)
	GetByID(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID) (*models.Document, error)
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Document, error)
	// DeleteWith removes the metadata row and calls removeObject with its
	// file path before committing. If removeObject fails the row stays.
	DeleteWith(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID, removeObject func(path string) error) (*models.Document, error)
}

// ActivityRepository is append-only: there is no update or delete.
type ActivityRepository interface {
	Append(ctx context.Context, scope tenancy.Scope, e models.ActivityEntry) (*models.ActivityEntry, error)
	ListByEmployee(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, limit int) ([]models.ActivityEntry, error)
	ListRecent(ctx context.Context, scope tenancy.Scope, limit int) ([]models.ActivityEntry, error)
}

type MessageRepository interface {
	Create(ctx context.Context, scope tenancy.Scope, senderID uuid.UUID, recipientID *uuid.UUID, body string) (*models.Message, error)
	// List returns messages newest first. before=0 starts from the latest.
	List(ctx context.Context, scope tenancy.Scope, before int64, limit int) ([]models.Message, error)
}

type AuditRepository interface {
	Create(ctx context.Context, scope tenancy.Scope, a models.Audit) (*models.Audit, error)
	SetStatus(ctx context.Context, scope tenancy.Scope, auditID uuid.UUID, status models.AuditStatus) (*models.Audit, error)
}

type TrainingRepository interface {
	Create(ctx context.Context, scope tenancy.Scope, t models.Training) (*models.Training, error)
}

type MeasureRepository interface {
	Create(ctx context.Context, scope tenancy.Scope, m models.Measure) (*models.Measure, error)
	SetStatus(ctx context.Context, scope tenancy.Scope, measureID uuid.UUID, status models.MeasureStatus) (*models.Measure, error)
}

// Counter counts rows of a named collection under the same filter rules as
// list queries.
type Counter interface {
	Count(ctx context.Context, scope tenancy.Scope, collection string, filters []query.Filter) (int, error)
}
