// Package dashboard assembles read-only views out of several independent
// queries. Each query is a branch: branches run concurrently and a failing
// branch only blanks its own section.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// ExpiryWindow is how far ahead a document counts as expiring.
	ExpiryWindow = 30 * 24 * time.Hour

	upcomingLimit  = 5
	recentLimit    = 5
	activityLimit  = 100
	maxParallelism = 8
)

type Counter interface {
	Count(ctx context.Context, scope tenancy.Scope, collection string, filters []query.Filter) (int, error)
}

type EmployeeReader interface {
	GetByID(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) (*models.Employee, error)
}

type NoteReader interface {
	ListByEmployee(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) ([]models.Note, error)
}

type TaskReader interface {
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Task, error)
}

type DocumentReader interface {
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Document, error)
}

type CheckupReader interface {
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.HealthCheckup, error)
}

type ActivityReader interface {
	ListForEmployee(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, limit int) ([]models.ActivityEntry, error)
}

// Sources bundles the readers the aggregator draws from.
type Sources struct {
	Counter   Counter
	Employees EmployeeReader
	Notes     NoteReader
	Tasks     TaskReader
	Documents DocumentReader
	Checkups  CheckupReader
	Activity  ActivityReader
}

// Summary is the dashboard landing view. Nil counts mean "could not be
// computed"; the branch names are listed in Unavailable.
type Summary struct {
	TotalEmployees     *int `json:"total_employees"`
	ActiveEmployees    *int `json:"active_employees"`
	OpenTasks          *int `json:"open_tasks"`
	OverdueTasks       *int `json:"overdue_tasks"`
	Documents          *int `json:"documents"`
	ExpiringDocuments  *int `json:"expiring_documents"`
	AuditsTotal        *int `json:"audits_total"`
	AuditsCompleted    *int `json:"audits_completed"`
	ComplianceRate     *int `json:"compliance_rate"`
	ExpiredTrainings   *int `json:"expired_trainings"`
	OverdueMeasures    *int `json:"overdue_measures"`
	OverdueObligations *int `json:"overdue_obligations"`

	UpcomingTasks   []models.Task     `json:"upcoming_tasks"`
	RecentDocuments []models.Document `json:"recent_documents"`

	Unavailable []string `json:"unavailable,omitempty"`
}

// Profile is everything shown on one employee's page.
type Profile struct {
	Employee  *models.Employee       `json:"employee"`
	Notes     []models.Note          `json:"notes"`
	Tasks     []models.Task          `json:"tasks"`
	Documents []models.Document      `json:"documents"`
	Checkups  []models.HealthCheckup `json:"checkups"`
	Activity  []models.ActivityEntry `json:"activity"`

	Unavailable []string `json:"unavailable,omitempty"`
}

type Aggregator struct {
	src    Sources
	logger *zap.Logger
	now    func() time.Time
}

func NewAggregator(src Sources, logger *zap.Logger) *Aggregator {
	return &Aggregator{src: src, logger: logger, now: time.Now}
}

// ComplianceRate is the completed share of audits as a whole percentage.
// It is nil when there are no audits: zero audits is "no data", not 0%.
func ComplianceRate(completed, total int) *int {
	if total <= 0 {
		return nil
	}
	rate := int(math.Round(float64(completed) / float64(total) * 100))
	return &rate
}

func (a *Aggregator) today() time.Time {
	y, m, d := a.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// run collects branch failures. Branches never return an error to the
// group so one failure cannot cancel its siblings.
type run struct {
	g      errgroup.Group
	mu     sync.Mutex
	failed []string
	logger *zap.Logger
	scope  tenancy.Scope
}

func newRun(logger *zap.Logger, scope tenancy.Scope) *run {
	r := &run{logger: logger, scope: scope}
	r.g.SetLimit(maxParallelism)
	return r
}

func (r *run) branch(name string, fn func() error) {
	r.g.Go(func() error {
		if err := fn(); err != nil {
			r.logger.Warn("dashboard branch failed",
				zap.String("branch", name),
				zap.String("tenant_id", r.scope.TenantID().String()),
				zap.Error(err),
			)
			r.mu.Lock()
			r.failed = append(r.failed, name)
			r.mu.Unlock()
		}
		return nil
	})
}

func (r *run) wait() []string {
	_ = r.g.Wait()
	sort.Strings(r.failed)
	return r.failed
}

func (a *Aggregator) count(ctx context.Context, scope tenancy.Scope, collection string, dst **int, filters ...query.Filter) func() error {
	return func() error {
		n, err := a.src.Counter.Count(ctx, scope, collection, filters)
		if err != nil {
			return err
		}
		*dst = &n
		return nil
	}
}

func (a *Aggregator) Summary(ctx context.Context, scope tenancy.Scope) (*Summary, error) {
	if _, err := scope.Check(); err != nil {
		return nil, err
	}

	today := a.today()
	horizon := today.Add(ExpiryWindow)
	notDone := query.Filter{Field: "status", Op: query.OpNeq, Value: string(models.TaskCompleted)}

	var s Summary
	r := newRun(a.logger, scope)

	r.branch("total_employees", a.count(ctx, scope, "employees", &s.TotalEmployees))
	r.branch("active_employees", a.count(ctx, scope, "employees", &s.ActiveEmployees,
		query.Filter{Field: "active", Op: query.OpEq, Value: true}))
	r.branch("open_tasks", a.count(ctx, scope, "tasks", &s.OpenTasks, notDone))
	r.branch("overdue_tasks", a.count(ctx, scope, "tasks", &s.OverdueTasks,
		notDone, query.Filter{Field: "due_date", Op: query.OpLt, Value: today}))
	r.branch("documents", a.count(ctx, scope, "documents", &s.Documents))
	r.branch("expiring_documents", a.count(ctx, scope, "documents", &s.ExpiringDocuments,
		query.Filter{Field: "expires_at", Op: query.OpGte, Value: today},
		query.Filter{Field: "expires_at", Op: query.OpLte, Value: horizon}))
	r.branch("audits_total", a.count(ctx, scope, "audits", &s.AuditsTotal))
	r.branch("audits_completed", a.count(ctx, scope, "audits", &s.AuditsCompleted,
		query.Filter{Field: "status", Op: query.OpEq, Value: string(models.AuditCompleted)}))
	r.branch("expired_trainings", a.count(ctx, scope, "trainings", &s.ExpiredTrainings,
		query.Filter{Field: "valid_until", Op: query.OpLt, Value: today}))
	r.branch("overdue_measures", a.count(ctx, scope, "measures", &s.OverdueMeasures,
		query.Filter{Field: "status", Op: query.OpNeq, Value: string(models.MeasureCompleted)},
		query.Filter{Field: "due_date", Op: query.OpLt, Value: today}))

	r.branch("upcoming_tasks", func() error {
		tasks, err := a.src.Tasks.List(ctx, scope, query.List{
			Filters: []query.Filter{notDone},
			Order:   []query.Order{{Field: "due_date"}},
			Limit:   upcomingLimit,
		})
		s.UpcomingTasks = tasks
		return err
	})
	r.branch("recent_documents", func() error {
		docs, err := a.src.Documents.List(ctx, scope, query.List{
			Order: []query.Order{{Field: "created_at", Desc: true}},
			Limit: recentLimit,
		})
		s.RecentDocuments = docs
		return err
	})

	s.Unavailable = r.wait()

	if s.AuditsTotal != nil && s.AuditsCompleted != nil {
		s.ComplianceRate = ComplianceRate(*s.AuditsCompleted, *s.AuditsTotal)
	}
	if s.ExpiredTrainings != nil && s.OverdueMeasures != nil {
		n := *s.ExpiredTrainings + *s.OverdueMeasures
		s.OverdueObligations = &n
	}
	if s.UpcomingTasks == nil {
		s.UpcomingTasks = []models.Task{}
	}
	if s.RecentDocuments == nil {
		s.RecentDocuments = []models.Document{}
	}
	return &s, nil
}

// EmployeeProfile loads the employee and then its related sections in
// parallel. Only a missing employee fails the whole view.
func (a *Aggregator) EmployeeProfile(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) (*Profile, error) {
	e, err := a.src.Employees.GetByID(ctx, scope, employeeID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("employee %s: %w", employeeID, apperr.ErrNotFound)
	}

	p := Profile{Employee: e}
	r := newRun(a.logger, scope)

	r.branch("notes", func() (err error) {
		p.Notes, err = a.src.Notes.ListByEmployee(ctx, scope, employeeID)
		return err
	})
	r.branch("tasks", func() (err error) {
		p.Tasks, err = a.src.Tasks.List(ctx, scope, query.List{
			Filters: []query.Filter{{Field: "assignee_id", Op: query.OpEq, Value: employeeID}},
			Order:   []query.Order{{Field: "due_date"}},
		})
		return err
	})
	r.branch("documents", func() (err error) {
		p.Documents, err = a.src.Documents.List(ctx, scope, query.List{
			Filters: []query.Filter{{Field: "employee_id", Op: query.OpEq, Value: employeeID}},
			Order:   []query.Order{{Field: "created_at", Desc: true}},
		})
		return err
	})
	r.branch("checkups", func() (err error) {
		p.Checkups, err = a.src.Checkups.List(ctx, scope, query.List{
			Filters: []query.Filter{{Field: "employee_id", Op: query.OpEq, Value: employeeID}},
			Order:   []query.Order{{Field: "appointment_date"}},
		})
		return err
	})
	r.branch("activity", func() (err error) {
		p.Activity, err = a.src.Activity.ListForEmployee(ctx, scope, employeeID, activityLimit)
		return err
	})

	p.Unavailable = r.wait()

	if p.Notes == nil {
		p.Notes = []models.Note{}
	}
	if p.Tasks == nil {
		p.Tasks = []models.Task{}
	}
	if p.Documents == nil {
		p.Documents = []models.Document{}
	}
	if p.Checkups == nil {
		p.Checkups = []models.HealthCheckup{}
	}
	if p.Activity == nil {
		p.Activity = []models.ActivityEntry{}
	}
	return &p, nil
}
