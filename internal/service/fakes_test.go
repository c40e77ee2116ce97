package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/realtime"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

// In-memory fakes keyed by tenant. They implement just enough of the
// repository contracts for service tests; SQL behaviour is covered by the
// postgres integration tests.

type recorder struct {
	mu      sync.Mutex
	entries []models.ActivityEntry
	fail    bool
}

func (r *recorder) Record(_ context.Context, scope tenancy.Scope, e models.ActivityEntry) (*models.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("activity table missing")
	}
	e.ID = int64(len(r.entries) + 1)
	e.CompanyID = scope.TenantID()
	r.entries = append(r.entries, e)
	return &e, nil
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type publisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *publisher) Publish(_ context.Context, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *publisher) tables() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Table+":"+string(e.Type))
	}
	return out
}

type companies struct {
	byID map[uuid.UUID]*models.Company
}

func newCompanies(c ...models.Company) *companies {
	f := &companies{byID: map[uuid.UUID]*models.Company{}}
	for i := range c {
		f.byID[c[i].ID] = &c[i]
	}
	return f
}

func (f *companies) CreateForOwner(_ context.Context, name string, _ uuid.UUID) (*models.Company, error) {
	c := &models.Company{ID: uuid.New(), Name: name, SubscriptionTier: "free", SubscriptionStatus: "active", EmployeeCap: 25}
	f.byID[c.ID] = c
	return c, nil
}

func (f *companies) GetByID(_ context.Context, id uuid.UUID) (*models.Company, error) {
	return f.byID[id], nil
}

func (f *companies) List(context.Context) ([]models.Company, error) {
	out := make([]models.Company, 0, len(f.byID))
	for _, c := range f.byID {
		out = append(out, *c)
	}
	return out, nil
}

func (f *companies) UpdateSubscription(_ context.Context, id uuid.UUID, sub models.Subscription) (*models.Company, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	c.SubscriptionTier, c.SubscriptionStatus, c.EmployeeCap = sub.Tier, sub.Status, sub.EmployeeCap
	return c, nil
}

// employees enforces the active cap the way the store does under the
// company row lock.
type employees struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Employee
	cap  int
}

func newEmployees(cap int) *employees {
	return &employees{rows: map[uuid.UUID]*models.Employee{}, cap: cap}
}

func (f *employees) holdSeat(scope tenancy.Scope) error {
	n := 0
	for _, e := range f.rows {
		if e.CompanyID == scope.TenantID() && e.Active {
			n++
		}
	}
	if n >= f.cap {
		return fmt.Errorf("%w: employee cap of %d reached", apperr.ErrLimitReached, f.cap)
	}
	return nil
}

func (f *employees) get(scope tenancy.Scope, id uuid.UUID) *models.Employee {
	e, ok := f.rows[id]
	if !ok || e.CompanyID != scope.TenantID() {
		return nil
	}
	return e
}

func copyEmployee(e *models.Employee) *models.Employee {
	if e == nil {
		return nil
	}
	c := *e
	c.Tags = slices.Clone(e.Tags)
	c.ProfileFields = slices.Clone(e.ProfileFields)
	return &c
}

func (f *employees) Create(_ context.Context, scope tenancy.Scope, in models.EmployeeInput) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.holdSeat(scope); err != nil {
		return nil, err
	}
	e := &models.Employee{
		ID: uuid.New(), CompanyID: scope.TenantID(), EmployeeNumber: in.EmployeeNumber,
		FullName: in.FullName, Email: in.Email, Active: true,
		Tags: []string{}, ProfileFields: []models.ProfileField{},
	}
	f.rows[e.ID] = e
	return copyEmployee(e), nil
}

func (f *employees) GetByID(_ context.Context, scope tenancy.Scope, id uuid.UUID) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyEmployee(f.get(scope, id)), nil
}

func (f *employees) List(_ context.Context, scope tenancy.Scope, _ query.List) ([]models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Employee, 0)
	for _, e := range f.rows {
		if e.CompanyID == scope.TenantID() {
			out = append(out, *copyEmployee(e))
		}
	}
	return out, nil
}

func (f *employees) Update(_ context.Context, scope tenancy.Scope, id uuid.UUID, in models.EmployeeInput) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.get(scope, id)
	if e == nil {
		return nil, nil
	}
	e.EmployeeNumber, e.FullName, e.Email = in.EmployeeNumber, in.FullName, in.Email
	return copyEmployee(e), nil
}

func (f *employees) SetActive(_ context.Context, scope tenancy.Scope, id uuid.UUID, active bool) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.get(scope, id)
	if e == nil {
		return nil, nil
	}
	if active && !e.Active {
		if err := f.holdSeat(scope); err != nil {
			return nil, err
		}
	}
	e.Active = active
	return copyEmployee(e), nil
}

func (f *employees) AddTag(_ context.Context, scope tenancy.Scope, id uuid.UUID, tag string) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.get(scope, id)
	if e == nil {
		return nil, nil
	}
	if !slices.Contains(e.Tags, tag) {
		e.Tags = append(e.Tags, tag)
	}
	return copyEmployee(e), nil
}

func (f *employees) RemoveTag(_ context.Context, scope tenancy.Scope, id uuid.UUID, tag string) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.get(scope, id)
	if e == nil {
		return nil, nil
	}
	e.Tags = slices.DeleteFunc(e.Tags, func(t string) bool { return t == tag })
	return copyEmployee(e), nil
}

func (f *employees) SetProfileFields(_ context.Context, scope tenancy.Scope, id uuid.UUID, fields []models.ProfileField) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.get(scope, id)
	if e == nil {
		return nil, nil
	}
	e.ProfileFields = slices.Clone(fields)
	return copyEmployee(e), nil
}

type notes struct {
	rows []models.Note
}

func (f *notes) Create(_ context.Context, scope tenancy.Scope, n models.Note) (*models.Note, error) {
	n.ID = int64(len(f.rows) + 1)
	n.CompanyID = scope.TenantID()
	f.rows = append(f.rows, n)
	return &n, nil
}

func (f *notes) ListByEmployee(_ context.Context, scope tenancy.Scope, employeeID uuid.UUID) ([]models.Note, error) {
	out := make([]models.Note, 0)
	for _, n := range f.rows {
		if n.CompanyID == scope.TenantID() && n.EmployeeID == employeeID {
			out = append(out, n)
		}
	}
	return out, nil
}

// tasks mimics the status_requested_at guard.
type tasks struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]*models.Task
	requestedAt map[uuid.UUID]time.Time
}

func newTasks() *tasks {
	return &tasks{rows: map[uuid.UUID]*models.Task{}, requestedAt: map[uuid.UUID]time.Time{}}
}

func (f *tasks) Create(_ context.Context, scope tenancy.Scope, t models.Task) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.New()
	t.CompanyID = scope.TenantID()
	f.rows[t.ID] = &t
	c := t
	return &c, nil
}

func (f *tasks) GetByID(_ context.Context, scope tenancy.Scope, id uuid.UUID) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.CompanyID != scope.TenantID() {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (f *tasks) List(context.Context, tenancy.Scope, query.List) ([]models.Task, error) {
	return []models.Task{}, nil
}

func (f *tasks) SetStatus(_ context.Context, scope tenancy.Scope, id uuid.UUID, status models.TaskStatus, requestedAt time.Time) (*models.Task, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.CompanyID != scope.TenantID() {
		return nil, false, nil
	}
	if last, seen := f.requestedAt[id]; seen && !last.Before(requestedAt) {
		c := *t
		return &c, false, nil
	}
	t.Status = status
	f.requestedAt[id] = requestedAt
	c := *t
	return &c, true, nil
}

func (f *tasks) Delete(_ context.Context, scope tenancy.Scope, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.CompanyID != scope.TenantID() {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

// checkups serialises ApplyTransition with a mutex the way the real store
// does with a row lock.
type checkups struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.HealthCheckup
}

func newCheckups() *checkups {
	return &checkups{rows: map[uuid.UUID]*models.HealthCheckup{}}
}

func (f *checkups) insert(scope tenancy.Scope, c models.HealthCheckup) *models.HealthCheckup {
	c.ID = uuid.New()
	c.CompanyID = scope.TenantID()
	f.rows[c.ID] = &c
	out := c
	return &out
}

func (f *checkups) Create(_ context.Context, scope tenancy.Scope, c models.HealthCheckup, followUps repository.CheckupFollowUps) (*models.HealthCheckup, []models.HealthCheckup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := f.insert(scope, c)
	if followUps == nil {
		return created, nil, nil
	}
	var spawned []models.HealthCheckup
	for _, fu := range followUps(*created) {
		spawned = append(spawned, *f.insert(scope, fu))
	}
	return created, spawned, nil
}

func (f *checkups) GetByID(_ context.Context, scope tenancy.Scope, id uuid.UUID) (*models.HealthCheckup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.CompanyID != scope.TenantID() {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (f *checkups) List(context.Context, tenancy.Scope, query.List) ([]models.HealthCheckup, error) {
	return []models.HealthCheckup{}, nil
}

func (f *checkups) ApplyTransition(_ context.Context, scope tenancy.Scope, id uuid.UUID, fn repository.CheckupTransition) (*models.HealthCheckup, []models.HealthCheckup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.CompanyID != scope.TenantID() {
		return nil, nil, nil
	}
	next, followUps, err := fn(*c)
	if err != nil {
		return nil, nil, err
	}
	*c = next
	created := make([]models.HealthCheckup, 0, len(followUps))
	for _, fu := range followUps {
		created = append(created, *f.insert(scope, fu))
	}
	out := *c
	return &out, created, nil
}

func (f *checkups) Delete(_ context.Context, scope tenancy.Scope, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.CompanyID != scope.TenantID() {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

func (f *checkups) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type documents struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Document
	createErr error
}

func newDocuments() *documents {
	return &documents{rows: map[uuid.UUID]*models.Document{}}
}

func (f *documents) Create(_ context.Context, scope tenancy.Scope, d models.Document) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	d.ID = uuid.New()
	d.CompanyID = scope.TenantID()
	f.rows[d.ID] = &d
	out := d
	return &out, nil
}

func (f *documents) GetByID(_ context.Context, scope tenancy.Scope, id uuid.UUID) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok || d.CompanyID != scope.TenantID() {
		return nil, nil
	}
	out := *d
	return &out, nil
}

func (f *documents) List(context.Context, tenancy.Scope, query.List) ([]models.Document, error) {
	return []models.Document{}, nil
}

func (f *documents) DeleteWith(_ context.Context, scope tenancy.Scope, id uuid.UUID, removeObject func(string) error) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok || d.CompanyID != scope.TenantID() {
		return nil, nil
	}
	if err := removeObject(d.FilePath); err != nil {
		return nil, err
	}
	delete(f.rows, id)
	return d, nil
}

type messages struct {
	rows []models.Message
}

func (f *messages) Create(_ context.Context, scope tenancy.Scope, sender uuid.UUID, recipient *uuid.UUID, body string) (*models.Message, error) {
	m := models.Message{ID: int64(len(f.rows) + 1), CompanyID: scope.TenantID(), SenderID: sender, RecipientID: recipient, Body: body}
	f.rows = append(f.rows, m)
	return &m, nil
}

func (f *messages) List(_ context.Context, _ tenancy.Scope, _ int64, limit int) ([]models.Message, error) {
	if limit > len(f.rows) {
		limit = len(f.rows)
	}
	return f.rows[:limit], nil
}
