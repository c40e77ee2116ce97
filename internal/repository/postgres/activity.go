package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

const activityColumns = `id, company_id, employee_id, action, action_type, details, actor_id, actor_name, metadata, created_at`

// ActivityStore only appends and reads. Nothing in the package updates or
// deletes activity rows.
type ActivityStore struct {
	pool *pgxpool.Pool
}

func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

func scanActivity(row pgx.Row) (*models.ActivityEntry, error) {
	var a models.ActivityEntry
	var metadata []byte
	err := row.Scan(
		&a.ID,
		&a.CompanyID,
		&a.EmployeeID,
		&a.Action,
		&a.ActionType,
		&a.Details,
		&a.ActorID,
		&a.ActorName,
		&metadata,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &a, nil
}

func (s *ActivityStore) Append(ctx context.Context, scope tenancy.Scope, e models.ActivityEntry) (*models.ActivityEntry, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	var metadata *string
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		m := string(raw)
		metadata = &m
	}

	entry, err := scanActivity(s.pool.QueryRow(ctx, `
		INSERT INTO activity_logs (company_id, employee_id, action, action_type, details, actor_id, actor_name, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		RETURNING `+activityColumns,
		tenantID, e.EmployeeID, e.Action, e.ActionType, e.Details, e.ActorID, e.ActorName, metadata))
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", apperr.FromPg(err))
	}
	return entry, nil
}

// ListByEmployee returns the newest entries first.
func (s *ActivityStore) ListByEmployee(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, limit int) ([]models.ActivityEntry, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	return s.list(ctx, `
		SELECT `+activityColumns+`
		FROM activity_logs
		WHERE company_id = $1 AND employee_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, tenantID, employeeID, limit)
}

func (s *ActivityStore) ListRecent(ctx context.Context, scope tenancy.Scope, limit int) ([]models.ActivityEntry, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	return s.list(ctx, `
		SELECT `+activityColumns+`
		FROM activity_logs
		WHERE company_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, tenantID, limit)
}

func (s *ActivityStore) list(ctx context.Context, sql string, args ...any) ([]models.ActivityEntry, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ActivityEntry, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return entries, nil
}
