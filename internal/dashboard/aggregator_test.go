package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubCounter answers by collection name plus the filtered field names, so
// "tasks" and "tasks/status" can return different numbers.
type stubCounter struct {
	mu     sync.Mutex
	counts map[string]int
	fail   map[string]bool
	seen   []tenancy.Scope
}

func key(collection string, filters []query.Filter) string {
	k := collection
	for _, f := range filters {
		k += "/" + f.Field
	}
	return k
}

func (s *stubCounter) Count(_ context.Context, scope tenancy.Scope, collection string, filters []query.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, scope)
	k := key(collection, filters)
	if s.fail[k] {
		return 0, errors.New("relation does not exist")
	}
	return s.counts[k], nil
}

type stubLists struct {
	tasks     []models.Task
	documents []models.Document
	checkups  []models.HealthCheckup
	err       error
	lastTask  query.List
	mu        sync.Mutex
}

func (s *stubLists) tasksList(l query.List) ([]models.Task, error) {
	s.mu.Lock()
	s.lastTask = l
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.tasks, nil
}

type taskReader struct{ *stubLists }

func (r taskReader) List(_ context.Context, _ tenancy.Scope, l query.List) ([]models.Task, error) {
	return r.tasksList(l)
}

type documentReader struct{ *stubLists }

func (r documentReader) List(context.Context, tenancy.Scope, query.List) ([]models.Document, error) {
	return r.documents, nil
}

type checkupReader struct{ *stubLists }

func (r checkupReader) List(context.Context, tenancy.Scope, query.List) ([]models.HealthCheckup, error) {
	return r.checkups, r.err
}

type employeeReader struct{ e *models.Employee }

func (r employeeReader) GetByID(context.Context, tenancy.Scope, uuid.UUID) (*models.Employee, error) {
	return r.e, nil
}

type noteReader struct{}

func (noteReader) ListByEmployee(context.Context, tenancy.Scope, uuid.UUID) ([]models.Note, error) {
	return []models.Note{{ID: 1, Content: "first"}, {ID: 2, Content: "second"}}, nil
}

type activityReader struct{ limit int }

func (a *activityReader) ListForEmployee(_ context.Context, _ tenancy.Scope, _ uuid.UUID, limit int) ([]models.ActivityEntry, error) {
	a.limit = limit
	return []models.ActivityEntry{{ID: 9, Action: "Employee created"}}, nil
}

func newAggregator(counter *stubCounter, lists *stubLists, employee *models.Employee, act *activityReader) *Aggregator {
	a := NewAggregator(Sources{
		Counter:   counter,
		Employees: employeeReader{employee},
		Notes:     noteReader{},
		Tasks:     taskReader{lists},
		Documents: documentReader{lists},
		Checkups:  checkupReader{lists},
		Activity:  act,
	}, zap.NewNop())
	a.now = func() time.Time { return time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC) }
	return a
}

func TestComplianceRate(t *testing.T) {
	assert.Nil(t, ComplianceRate(0, 0), "no audits is no data, not 0%")
	require.NotNil(t, ComplianceRate(0, 4))
	assert.Equal(t, 0, *ComplianceRate(0, 4))
	assert.Equal(t, 67, *ComplianceRate(2, 3))
	assert.Equal(t, 100, *ComplianceRate(5, 5))
}

func TestSummary_AllBranches(t *testing.T) {
	counter := &stubCounter{counts: map[string]int{
		"employees":                       12,
		"employees/active":                10,
		"tasks/status":                    4,
		"tasks/status/due_date":           1,
		"documents":                       7,
		"documents/expires_at/expires_at": 2,
		"audits":                          4,
		"audits/status":                   3,
		"trainings/valid_until":           2,
		"measures/status/due_date":        1,
	}}
	lists := &stubLists{
		tasks:     []models.Task{{Title: "Check extinguishers"}},
		documents: []models.Document{{Title: "Risk assessment"}},
	}
	scope := tenancy.MustScope(uuid.New())

	s, err := newAggregator(counter, lists, nil, &activityReader{}).Summary(context.Background(), scope)
	require.NoError(t, err)

	assert.Empty(t, s.Unavailable)
	assert.Equal(t, 12, *s.TotalEmployees)
	assert.Equal(t, 10, *s.ActiveEmployees)
	assert.Equal(t, 4, *s.OpenTasks)
	assert.Equal(t, 1, *s.OverdueTasks)
	assert.Equal(t, 2, *s.ExpiringDocuments)
	assert.Equal(t, 75, *s.ComplianceRate)
	assert.Equal(t, 3, *s.OverdueObligations)
	assert.Len(t, s.UpcomingTasks, 1)
	assert.Len(t, s.RecentDocuments, 1)
	assert.Equal(t, upcomingLimit, lists.lastTask.Limit)

	for _, seen := range counter.seen {
		assert.Equal(t, scope, seen)
	}
}

func TestSummary_ZeroAuditsHasNoRate(t *testing.T) {
	counter := &stubCounter{counts: map[string]int{}}
	s, err := newAggregator(counter, &stubLists{}, nil, &activityReader{}).Summary(context.Background(), tenancy.MustScope(uuid.New()))
	require.NoError(t, err)

	assert.Nil(t, s.ComplianceRate)
	require.NotNil(t, s.AuditsTotal)
	assert.Equal(t, 0, *s.AuditsTotal)
	assert.NotNil(t, s.UpcomingTasks)
	assert.NotNil(t, s.RecentDocuments)
}

func TestSummary_FailedBranchIsBlankNotZero(t *testing.T) {
	counter := &stubCounter{
		counts: map[string]int{"audits": 4, "audits/status": 2, "trainings/valid_until": 1},
		fail:   map[string]bool{"measures/status/due_date": true, "audits/status": true},
	}
	lists := &stubLists{err: errors.New("timeout")}

	s, err := newAggregator(counter, lists, nil, &activityReader{}).Summary(context.Background(), tenancy.MustScope(uuid.New()))
	require.NoError(t, err)

	assert.Equal(t, []string{"audits_completed", "overdue_measures", "upcoming_tasks"}, s.Unavailable)
	assert.Nil(t, s.AuditsCompleted)
	assert.Nil(t, s.ComplianceRate)
	assert.Nil(t, s.OverdueMeasures)
	assert.Nil(t, s.OverdueObligations)
	require.NotNil(t, s.ExpiredTrainings)
	assert.Equal(t, 1, *s.ExpiredTrainings)
	assert.Empty(t, s.UpcomingTasks)
}

func TestSummary_RequiresTenant(t *testing.T) {
	_, err := newAggregator(&stubCounter{}, &stubLists{}, nil, &activityReader{}).Summary(context.Background(), tenancy.Scope{})
	assert.ErrorIs(t, err, apperr.ErrNoTenant)
}

func TestEmployeeProfile(t *testing.T) {
	id := uuid.New()
	act := &activityReader{}
	lists := &stubLists{err: errors.New("checkups unavailable")}
	a := newAggregator(&stubCounter{}, lists, &models.Employee{ID: id, FullName: "Ann"}, act)

	p, err := a.EmployeeProfile(context.Background(), tenancy.MustScope(uuid.New()), id)
	require.NoError(t, err)

	assert.Equal(t, "Ann", p.Employee.FullName)
	assert.Equal(t, "first", p.Notes[0].Content)
	assert.Len(t, p.Activity, 1)
	assert.Equal(t, activityLimit, act.limit)
	assert.Equal(t, []string{"checkups", "tasks"}, p.Unavailable)
	assert.NotNil(t, p.Checkups)
	assert.NotNil(t, p.Tasks)
}

func TestEmployeeProfile_Missing(t *testing.T) {
	a := newAggregator(&stubCounter{}, &stubLists{}, nil, &activityReader{})
	_, err := a.EmployeeProfile(context.Background(), tenancy.MustScope(uuid.New()), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
