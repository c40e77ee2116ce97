package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/lalith-99/hsedesk/internal/apperr"
)

// ParseList reads list parameters from a query string:
//
//	?filter=status:eq:pending&filter=due_date:lt:2026-01-01
//	?order=due_date.asc&order=created_at.desc.nullsfirst
//	?limit=20
//
// Field names are checked later against the collection whitelist.
func ParseList(values url.Values) (List, error) {
	var l List

	for _, raw := range values["filter"] {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) < 2 {
			return List{}, apperr.Validation("malformed filter %q, want field:op:value", raw)
		}
		f := Filter{Field: parts[0], Op: Op(parts[1])}
		if len(parts) == 3 {
			f.Value = parts[2]
		} else if f.Op != OpIsNull && f.Op != OpNotNull {
			return List{}, apperr.Validation("filter %q needs a value", raw)
		}
		l.Filters = append(l.Filters, f)
	}

	for _, raw := range values["order"] {
		parts := strings.Split(raw, ".")
		o := Order{Field: parts[0]}
		for _, mod := range parts[1:] {
			switch mod {
			case "asc":
			case "desc":
				o.Desc = true
			case "nullsfirst":
				o.NullsFirst = true
			default:
				return List{}, apperr.Validation("malformed order %q", raw)
			}
		}
		l.Order = append(l.Order, o)
	}

	if s := values.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return List{}, apperr.Validation("invalid limit %q", s)
		}
		l.Limit = n
	}
	return l, nil
}

// With returns a copy of l with f appended, for handlers that pin a filter
// (for example an employee id from the path).
func (l List) With(f ...Filter) List {
	out := l
	out.Filters = append(append([]Filter(nil), l.Filters...), f...)
	return out
}
