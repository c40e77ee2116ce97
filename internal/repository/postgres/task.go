package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type TaskStore struct {
	pool *pgxpool.Pool
}

func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID,
		&t.CompanyID,
		&t.Title,
		&t.Description,
		&t.AssigneeID,
		&t.AssigneeName,
		&t.Priority,
		&t.Status,
		&t.DueDate,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func taskWrite(stmt string) string {
	return `WITH t AS (` + stmt + ` RETURNING *)
		SELECT ` + taskColumns + `
		FROM t LEFT JOIN employees e ON e.id = t.assignee_id`
}

func (s *TaskStore) Create(ctx context.Context, scope tenancy.Scope, t models.Task) (*models.Task, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	task, err := scanTask(s.pool.QueryRow(ctx, taskWrite(`
		INSERT INTO tasks (company_id, title, description, assignee_id, priority, status, due_date, created_by)
		SELECT $1::uuid, $2::text, $3::text, $4::uuid, $5::text, $6::text, $7::date, $8::uuid
		WHERE $4::uuid IS NULL
		   OR EXISTS (SELECT 1 FROM employees WHERE id = $4 AND company_id = $1)`),
		tenantID, t.Title, t.Description, t.AssigneeID, t.Priority, t.Status, t.DueDate, t.CreatedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Validation("assignee does not exist")
		}
		return nil, fmt.Errorf("insert task: %w", apperr.FromPg(err))
	}
	return task, nil
}

func (s *TaskStore) GetByID(ctx context.Context, scope tenancy.Scope, taskID uuid.UUID) (*models.Task, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	task, err := scanTask(s.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t LEFT JOIN employees e ON e.id = t.assignee_id
		WHERE t.id = $1 AND t.company_id = $2`, taskID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *TaskStore) List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Task, error) {
	return fetch(ctx, s.pool, tasksCollection, scope, l, scanTask)
}

// SetStatus applies the write only when requestedAt is later than the last
// applied request, so a stale toggle that arrives late cannot overwrite a
// newer one. When the write is skipped the current row is returned with
// applied=false.
func (s *TaskStore) SetStatus(ctx context.Context, scope tenancy.Scope, taskID uuid.UUID, status models.TaskStatus, requestedAt time.Time) (*models.Task, bool, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, false, err
	}

	task, err := scanTask(s.pool.QueryRow(ctx, taskWrite(`
		UPDATE tasks
		SET status = $3, status_requested_at = $4, updated_at = now()
		WHERE id = $1 AND company_id = $2
		  AND (status_requested_at IS NULL OR status_requested_at < $4)`),
		taskID, tenantID, status, requestedAt))
	if err == nil {
		return task, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("set task status: %w", apperr.FromPg(err))
	}

	current, err := s.GetByID(ctx, scope, taskID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *TaskStore) Delete(ctx context.Context, scope tenancy.Scope, taskID uuid.UUID) (bool, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tasks
		WHERE id = $1 AND company_id = $2`, taskID, tenantID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
