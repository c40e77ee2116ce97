// Package query renders tenant-scoped list and count queries for named
// collections. A Collection whitelists the fields callers may filter and
// order on, so user-supplied field names never reach SQL text.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpIn       Op = "in"
	OpIsNull   Op = "is_null"
	OpNotNull  Op = "not_null"
	OpContains Op = "contains"
)

var comparison = map[Op]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpLt:  "<",
	OpLte: "<=",
	OpGt:  ">",
	OpGte: ">=",
}

// Kind tells the renderer how to coerce string values coming from a URL.
type Kind int

const (
	Text Kind = iota
	UUID
	Date
	Time
	Bool
	Int
	TextArray
)

type Field struct {
	Expr string
	Kind Kind
}

type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts on Field. NULLs go last in both directions unless NullsFirst
// is set.
type Order struct {
	Field      string
	Desc       bool
	NullsFirst bool
}

type List struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

// Collection describes one readable collection: its select list (which may
// include joined, nested projections), FROM clause, tenant column and the
// public field whitelist.
type Collection struct {
	Name         string
	Columns      string
	From         string
	Tenant       string
	ID           string
	Fields       map[string]Field
	DefaultOrder []Order
}

// Build renders a SELECT for l. The tenant filter is always $1.
func (c *Collection) Build(scope tenancy.Scope, l List) (string, []any, error) {
	where, args, err := c.where(scope, l.Filters)
	if err != nil {
		return "", nil, err
	}
	order, err := c.orderBy(l.Order)
	if err != nil {
		return "", nil, err
	}
	limit, err := clampLimit(l.Limit)
	if err != nil {
		return "", nil, err
	}
	args = append(args, limit)

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT $%d",
		c.Columns, c.From, where, order, len(args))
	return sql, args, nil
}

// BuildCount renders a SELECT count(*) with the same filter rules as Build.
func (c *Collection) BuildCount(scope tenancy.Scope, filters []Filter) (string, []any, error) {
	where, args, err := c.where(scope, filters)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", c.From, where), args, nil
}

func (c *Collection) where(scope tenancy.Scope, filters []Filter) (string, []any, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return "", nil, err
	}
	args := []any{tenantID}
	clauses := []string{c.Tenant + " = $1"}

	for _, f := range filters {
		field, ok := c.Fields[f.Field]
		if !ok {
			return "", nil, apperr.Validation("unknown field %q on %s", f.Field, c.Name)
		}
		clause, arg, hasArg, err := renderFilter(field, f, len(args)+1)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		if hasArg {
			args = append(args, arg)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

// likeEscaper makes a contains value match literally. Backslash is the
// default LIKE escape in Postgres.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func renderFilter(field Field, f Filter, n int) (string, any, bool, error) {
	switch f.Op {
	case OpIsNull:
		return field.Expr + " IS NULL", nil, false, nil
	case OpNotNull:
		return field.Expr + " IS NOT NULL", nil, false, nil
	case OpIn:
		vals, err := coerceList(field.Kind, f.Value)
		if err != nil {
			return "", nil, false, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		return fmt.Sprintf("%s = ANY($%d)", field.Expr, n), vals, true, nil
	case OpContains:
		switch field.Kind {
		case TextArray:
			return fmt.Sprintf("$%d = ANY(%s)", n, field.Expr), fmt.Sprint(f.Value), true, nil
		case Text:
			return fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", field.Expr, n), likeEscaper.Replace(fmt.Sprint(f.Value)), true, nil
		}
		return "", nil, false, apperr.Validation("contains is not supported on %s", f.Field)
	}

	sym, ok := comparison[f.Op]
	if !ok {
		return "", nil, false, apperr.Validation("unknown operator %q", f.Op)
	}
	if field.Kind == TextArray {
		return "", nil, false, apperr.Validation("%s only supports contains", f.Field)
	}
	v, err := coerce(field.Kind, f.Value)
	if err != nil {
		return "", nil, false, fmt.Errorf("filter %s: %w", f.Field, err)
	}
	return fmt.Sprintf("%s %s $%d", field.Expr, sym, n), v, true, nil
}

func (c *Collection) orderBy(orders []Order) (string, error) {
	if len(orders) == 0 {
		orders = c.DefaultOrder
	}
	parts := make([]string, 0, len(orders)+1)
	for _, o := range orders {
		field, ok := c.Fields[o.Field]
		if !ok {
			return "", apperr.Validation("unknown order field %q on %s", o.Field, c.Name)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		nulls := "NULLS LAST"
		if o.NullsFirst {
			nulls = "NULLS FIRST"
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", field.Expr, dir, nulls))
	}
	// Tie-break on id so equal keys come back in a stable order.
	parts = append(parts, c.ID+" ASC")
	return strings.Join(parts, ", "), nil
}

func clampLimit(n int) (int, error) {
	switch {
	case n < 0:
		return 0, apperr.Validation("limit must not be negative")
	case n == 0:
		return DefaultLimit, nil
	case n > MaxLimit:
		return MaxLimit, nil
	}
	return n, nil
}

func coerce(kind Kind, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	switch kind {
	case UUID:
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, apperr.Validation("invalid uuid %q", s)
		}
		return id, nil
	case Date:
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, apperr.Validation("invalid date %q, want YYYY-MM-DD", s)
		}
		return d, nil
	case Time:
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts, nil
		}
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, apperr.Validation("invalid timestamp %q", s)
		}
		return d, nil
	case Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, apperr.Validation("invalid boolean %q", s)
		}
		return b, nil
	case Int:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, apperr.Validation("invalid integer %q", s)
		}
		return i, nil
	}
	return s, nil
}

// coerceList turns an "in" value into a typed slice pgx can send as an array.
func coerceList(kind Kind, v any) (any, error) {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	default:
		return v, nil
	}

	switch kind {
	case UUID:
		out := make([]uuid.UUID, 0, len(raw))
		for _, s := range raw {
			id, err := coerce(UUID, strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			out = append(out, id.(uuid.UUID))
		}
		return out, nil
	case Int:
		out := make([]int64, 0, len(raw))
		for _, s := range raw {
			i, err := coerce(Int, strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			out = append(out, i.(int64))
		}
		return out, nil
	case Text:
		out := make([]string, 0, len(raw))
		for _, s := range raw {
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	}
	return nil, apperr.Validation("in is not supported for this field")
}
