package query

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tasks = &Collection{
	Name:    "tasks",
	Columns: "t.id, t.title",
	From:    "tasks t LEFT JOIN employees e ON e.id = t.assignee_id",
	Tenant:  "t.company_id",
	ID:      "t.id",
	Fields: map[string]Field{
		"status":      {Expr: "t.status", Kind: Text},
		"title":       {Expr: "t.title", Kind: Text},
		"assignee_id": {Expr: "t.assignee_id", Kind: UUID},
		"due_date":    {Expr: "t.due_date", Kind: Date},
		"tags":        {Expr: "t.tags", Kind: TextArray},
		"created_at":  {Expr: "t.created_at", Kind: Time},
	},
	DefaultOrder: []Order{{Field: "due_date"}},
}

func TestBuildAlwaysScopesTenantFirst(t *testing.T) {
	tenant := uuid.New()
	sql, args, err := tasks.Build(tenancy.MustScope(tenant), List{})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT t.id, t.title FROM tasks t LEFT JOIN employees e ON e.id = t.assignee_id WHERE t.company_id = $1 ORDER BY t.due_date ASC NULLS LAST, t.id ASC LIMIT $2",
		sql)
	assert.Equal(t, []any{tenant, DefaultLimit}, args)
}

func TestBuildRejectsZeroScope(t *testing.T) {
	_, _, err := tasks.Build(tenancy.Scope{}, List{})
	assert.ErrorIs(t, err, apperr.ErrNoTenant)

	_, _, err = tasks.BuildCount(tenancy.Scope{}, nil)
	assert.ErrorIs(t, err, apperr.ErrNoTenant)
}

func TestBuildFiltersAndOrder(t *testing.T) {
	tenant := uuid.New()
	assignee := uuid.New()
	sql, args, err := tasks.Build(tenancy.MustScope(tenant), List{
		Filters: []Filter{
			{Field: "status", Op: OpNeq, Value: "completed"},
			{Field: "assignee_id", Op: OpEq, Value: assignee.String()},
			{Field: "due_date", Op: OpLt, Value: "2026-03-01"},
			{Field: "tags", Op: OpContains, Value: "night-shift"},
			{Field: "title", Op: OpContains, Value: "ladder"},
			{Field: "due_date", Op: OpNotNull},
		},
		Order: []Order{{Field: "created_at", Desc: true}},
		Limit: 10,
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE t.company_id = $1 AND t.status <> $2 AND t.assignee_id = $3 AND t.due_date < $4 AND $5 = ANY(t.tags) AND t.title ILIKE '%' || $6 || '%' AND t.due_date IS NOT NULL")
	assert.Contains(t, sql, "ORDER BY t.created_at DESC NULLS LAST, t.id ASC LIMIT $7")
	require.Len(t, args, 7)
	assert.Equal(t, assignee, args[2])
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), args[3])
	assert.Equal(t, 10, args[6])
}

func TestBuildContainsMatchesWildcardsLiterally(t *testing.T) {
	_, args, err := tasks.Build(tenancy.MustScope(uuid.New()), List{
		Filters: []Filter{{Field: "title", Op: OpContains, Value: `50%_off\sale`}},
	})
	require.NoError(t, err)
	assert.Equal(t, `50\%\_off\\sale`, args[1])
}

func TestBuildInFilter(t *testing.T) {
	sql, args, err := tasks.Build(tenancy.MustScope(uuid.New()), List{
		Filters: []Filter{{Field: "status", Op: OpIn, Value: "pending, in_progress"}},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "t.status = ANY($2)")
	assert.Equal(t, []string{"pending", "in_progress"}, args[1])
}

func TestBuildRejectsUnknownFieldsAndOps(t *testing.T) {
	scope := tenancy.MustScope(uuid.New())

	_, _, err := tasks.Build(scope, List{Filters: []Filter{{Field: "company_id", Op: OpEq, Value: uuid.NewString()}}})
	assert.ErrorIs(t, err, apperr.ErrValidation, "tenant column is not a public field")

	_, _, err = tasks.Build(scope, List{Filters: []Filter{{Field: "status", Op: "like", Value: "x"}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = tasks.Build(scope, List{Order: []Order{{Field: "1; DROP TABLE tasks"}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = tasks.Build(scope, List{Filters: []Filter{{Field: "assignee_id", Op: OpEq, Value: "not-a-uuid"}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = tasks.Build(scope, List{Filters: []Filter{{Field: "tags", Op: OpEq, Value: "x"}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLimitClamp(t *testing.T) {
	scope := tenancy.MustScope(uuid.New())

	_, args, err := tasks.Build(scope, List{Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, args[len(args)-1])

	_, _, err = tasks.Build(scope, List{Limit: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestBuildCount(t *testing.T) {
	sql, args, err := tasks.BuildCount(tenancy.MustScope(uuid.New()), []Filter{{Field: "status", Op: OpEq, Value: "pending"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT count(*) FROM tasks t LEFT JOIN employees e ON e.id = t.assignee_id WHERE t.company_id = $1 AND t.status = $2", sql)
	assert.Len(t, args, 2)
}

func TestParseList(t *testing.T) {
	v := url.Values{}
	v.Add("filter", "status:eq:pending")
	v.Add("filter", "due_date:is_null")
	v.Add("filter", "title:contains:a:b")
	v.Add("order", "due_date.desc.nullsfirst")
	v.Set("limit", "25")

	l, err := ParseList(v)
	require.NoError(t, err)
	assert.Equal(t, []Filter{
		{Field: "status", Op: OpEq, Value: "pending"},
		{Field: "due_date", Op: OpIsNull},
		{Field: "title", Op: OpContains, Value: "a:b"},
	}, l.Filters)
	assert.Equal(t, []Order{{Field: "due_date", Desc: true, NullsFirst: true}}, l.Order)
	assert.Equal(t, 25, l.Limit)
}

func TestParseListErrors(t *testing.T) {
	for _, raw := range []string{"filter=status", "filter=status:eq", "order=due_date.sideways", "limit=0", "limit=abc"} {
		v, err := url.ParseQuery(raw)
		require.NoError(t, err)
		_, err = ParseList(v)
		assert.ErrorIs(t, err, apperr.ErrValidation, raw)
	}
}

func TestWithDoesNotAlias(t *testing.T) {
	base := List{Filters: make([]Filter, 0, 4)}
	a := base.With(Filter{Field: "status", Op: OpEq, Value: "a"})
	b := base.With(Filter{Field: "status", Op: OpEq, Value: "b"})
	assert.Equal(t, "a", a.Filters[0].Value)
	assert.Equal(t, "b", b.Filters[0].Value)
	assert.Empty(t, base.Filters)
}
