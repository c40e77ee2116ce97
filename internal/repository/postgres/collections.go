package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

const employeeColumns = `e.id, e.company_id, e.employee_number, e.full_name, e.email,
	e.department_id, d.name, e.job_role_id, e.exposure_group_id, e.active,
	e.tags, e.profile_fields, e.created_at, e.updated_at`

var employeesCollection = &query.Collection{
	Name:    "employees",
	Columns: employeeColumns,
	From:    "employees e LEFT JOIN departments d ON d.id = e.department_id",
	Tenant:  "e.company_id",
	ID:      "e.id",
	Fields: map[string]query.Field{
		"id":              {Expr: "e.id", Kind: query.UUID},
		"employee_number": {Expr: "e.employee_number", Kind: query.Text},
		"full_name":       {Expr: "e.full_name", Kind: query.Text},
		"email":           {Expr: "e.email", Kind: query.Text},
		"department_id":   {Expr: "e.department_id", Kind: query.UUID},
		"department_name": {Expr: "d.name", Kind: query.Text},
		"active":          {Expr: "e.active", Kind: query.Bool},
		"tags":            {Expr: "e.tags", Kind: query.TextArray},
		"created_at":      {Expr: "e.created_at", Kind: query.Time},
	},
	DefaultOrder: []query.Order{{Field: "full_name"}},
}

const taskColumns = `t.id, t.company_id, t.title, t.description, t.assignee_id, e.full_name,
	t.priority, t.status, t.due_date, t.created_by, t.created_at, t.updated_at`

var tasksCollection = &query.Collection{
	Name:    "tasks",
	Columns: taskColumns,
	From:    "tasks t LEFT JOIN employees e ON e.id = t.assignee_id",
	Tenant:  "t.company_id",
	ID:      "t.id",
	Fields: map[string]query.Field{
		"id":          {Expr: "t.id", Kind: query.UUID},
		"title":       {Expr: "t.title", Kind: query.Text},
		"assignee_id": {Expr: "t.assignee_id", Kind: query.UUID},
		"priority":    {Expr: "t.priority", Kind: query.Text},
		"status":      {Expr: "t.status", Kind: query.Text},
		"due_date":    {Expr: "t.due_date", Kind: query.Date},
		"created_at":  {Expr: "t.created_at", Kind: query.Time},
	},
	DefaultOrder: []query.Order{{Field: "due_date"}},
}

const checkupColumns = `c.id, c.company_id, c.employee_id, c.investigation, c.appointment_date,
	c.completed_date, c.status, c.certificate_path, c.previous_checkup_id, c.created_at`

var checkupsCollection = &query.Collection{
	Name:    "health_checkups",
	Columns: checkupColumns,
	From:    "health_checkups c",
	Tenant:  "c.company_id",
	ID:      "c.id",
	Fields: map[string]query.Field{
		"id":               {Expr: "c.id", Kind: query.UUID},
		"employee_id":      {Expr: "c.employee_id", Kind: query.UUID},
		"investigation":    {Expr: "c.investigation", Kind: query.Text},
		"appointment_date": {Expr: "c.appointment_date", Kind: query.Date},
		"completed_date":   {Expr: "c.completed_date", Kind: query.Date},
		"status":           {Expr: "c.status", Kind: query.Text},
	},
	DefaultOrder: []query.Order{{Field: "appointment_date"}},
}

const documentColumns = `d.id, d.company_id, d.employee_id, d.title, d.category, d.file_path,
	d.size_bytes, d.mime_type, d.uploaded_by, d.expires_at, d.is_public, d.tags, d.created_at`

var documentsCollection = &query.Collection{
	Name:    "documents",
	Columns: documentColumns,
	From:    "documents d",
	Tenant:  "d.company_id",
	ID:      "d.id",
	Fields: map[string]query.Field{
		"id":          {Expr: "d.id", Kind: query.UUID},
		"employee_id": {Expr: "d.employee_id", Kind: query.UUID},
		"title":       {Expr: "d.title", Kind: query.Text},
		"category":    {Expr: "d.category", Kind: query.Text},
		"mime_type":   {Expr: "d.mime_type", Kind: query.Text},
		"expires_at":  {Expr: "d.expires_at", Kind: query.Date},
		"is_public":   {Expr: "d.is_public", Kind: query.Bool},
		"tags":        {Expr: "d.tags", Kind: query.TextArray},
		"created_at":  {Expr: "d.created_at", Kind: query.Time},
	},
	DefaultOrder: []query.Order{{Field: "created_at", Desc: true}},
}

var auditsCollection = &query.Collection{
	Name:    "audits",
	Columns: "a.id, a.company_id, a.title, a.status, a.scheduled_for, a.created_at",
	From:    "audits a",
	Tenant:  "a.company_id",
	ID:      "a.id",
	Fields: map[string]query.Field{
		"status":        {Expr: "a.status", Kind: query.Text},
		"scheduled_for": {Expr: "a.scheduled_for", Kind: query.Date},
	},
	DefaultOrder: []query.Order{{Field: "scheduled_for"}},
}

var trainingsCollection = &query.Collection{
	Name:    "trainings",
	Columns: "tr.id, tr.company_id, tr.employee_id, tr.title, tr.valid_until, tr.created_at",
	From:    "trainings tr",
	Tenant:  "tr.company_id",
	ID:      "tr.id",
	Fields: map[string]query.Field{
		"employee_id": {Expr: "tr.employee_id", Kind: query.UUID},
		"valid_until": {Expr: "tr.valid_until", Kind: query.Date},
	},
	DefaultOrder: []query.Order{{Field: "valid_until"}},
}

var measuresCollection = &query.Collection{
	Name:    "measures",
	Columns: "m.id, m.company_id, m.title, m.status, m.due_date, m.created_at",
	From:    "measures m",
	Tenant:  "m.company_id",
	ID:      "m.id",
	Fields: map[string]query.Field{
		"status":   {Expr: "m.status", Kind: query.Text},
		"due_date": {Expr: "m.due_date", Kind: query.Date},
	},
	DefaultOrder: []query.Order{{Field: "due_date"}},
}

// collections is the set of names the Fetcher accepts.
var collections = map[string]*query.Collection{
	employeesCollection.Name: employeesCollection,
	tasksCollection.Name:     tasksCollection,
	checkupsCollection.Name:  checkupsCollection,
	documentsCollection.Name: documentsCollection,
	auditsCollection.Name:    auditsCollection,
	trainingsCollection.Name: trainingsCollection,
	measuresCollection.Name:  measuresCollection,
}

// Fetcher counts rows of any registered collection.
type Fetcher struct {
	pool *pgxpool.Pool
}

func NewFetcher(pool *pgxpool.Pool) *Fetcher {
	return &Fetcher{pool: pool}
}

func (f *Fetcher) Count(ctx context.Context, scope tenancy.Scope, collection string, filters []query.Filter) (int, error) {
	c, ok := collections[collection]
	if !ok {
		return 0, apperr.Validation("unknown collection %q", collection)
	}
	sql, args, err := c.BuildCount(scope, filters)
	if err != nil {
		return 0, err
	}

	var n int
	if err := f.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// fetch runs a collection list query and scans every row with scan.
func fetch[T any](ctx context.Context, pool *pgxpool.Pool, c *query.Collection, scope tenancy.Scope, l query.List, scan func(pgx.Row) (*T, error)) ([]T, error) {
	sql, args, err := c.Build(scope, l)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.Name, apperr.FromPg(err))
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.Name, err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.Name, err)
	}
	return out, nil
}
