package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/db"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type EmployeeStore struct {
	pool *pgxpool.Pool
}

func NewEmployeeStore(pool *pgxpool.Pool) *EmployeeStore {
	return &EmployeeStore{pool: pool}
}

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var e models.Employee
	var fields []byte
	err := row.Scan(
		&e.ID,
		&e.CompanyID,
		&e.EmployeeNumber,
		&e.FullName,
		&e.Email,
		&e.DepartmentID,
		&e.DepartmentName,
		&e.JobRoleID,
		&e.ExposureGroupID,
		&e.Active,
		&e.Tags,
		&fields,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.ProfileFields = make([]models.ProfileField, 0)
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &e.ProfileFields); err != nil {
			return nil, fmt.Errorf("decode profile fields: %w", err)
		}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return &e, nil
}

// employeeWrite wraps a data-modifying statement on employees so the
// written row comes back joined with its department name.
func employeeWrite(stmt string) string {
	return `WITH e AS (` + stmt + ` RETURNING *)
		SELECT ` + employeeColumns + `
		FROM e LEFT JOIN departments d ON d.id = e.department_id`
}

func (s *EmployeeStore) writeOne(ctx context.Context, op, stmt string, args ...any) (*models.Employee, error) {
	return writeEmployee(ctx, s.pool, op, stmt, args...)
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func writeEmployee(ctx context.Context, q rowQuerier, op, stmt string, args ...any) (*models.Employee, error) {
	e, err := scanEmployee(q.QueryRow(ctx, employeeWrite(stmt), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, apperr.FromPg(err))
	}
	return e, nil
}

// holdSeat locks the company row and fails with ErrLimitReached when the
// active headcount is already at the employee cap. Inserts and
// reactivations of the same company serialize on the lock.
func holdSeat(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error {
	var limit, active int
	err := tx.QueryRow(ctx, `
		SELECT employee_cap FROM companies
		WHERE id = $1
		FOR UPDATE`, tenantID).Scan(&limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("company %s: %w", tenantID, apperr.ErrNotFound)
		}
		return fmt.Errorf("lock company: %w", err)
	}
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM employees
		WHERE company_id = $1 AND active`, tenantID).Scan(&active)
	if err != nil {
		return fmt.Errorf("count active employees: %w", err)
	}
	if active >= limit {
		return fmt.Errorf("%w: employee cap of %d reached", apperr.ErrLimitReached, limit)
	}
	return nil
}

func (s *EmployeeStore) Create(ctx context.Context, scope tenancy.Scope, in models.EmployeeInput) (*models.Employee, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	var e *models.Employee
	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := holdSeat(ctx, tx, tenantID); err != nil {
			return err
		}
		// A department from another company is treated as missing.
		var err error
		e, err = writeEmployee(ctx, tx, "insert employee", `
			INSERT INTO employees (company_id, employee_number, full_name, email, department_id, job_role_id, exposure_group_id)
			SELECT $1::uuid, $2::text, $3::text, $4::text, $5::uuid, $6::uuid, $7::uuid
			WHERE $5::uuid IS NULL
			   OR EXISTS (SELECT 1 FROM departments WHERE id = $5 AND company_id = $1)`,
			tenantID, in.EmployeeNumber, in.FullName, in.Email, in.DepartmentID, in.JobRoleID, in.ExposureGroupID)
		if err != nil {
			return err
		}
		if e == nil {
			return apperr.Validation("department does not exist")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EmployeeStore) GetByID(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) (*models.Employee, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	e, err := scanEmployee(s.pool.QueryRow(ctx, `
		SELECT `+employeeColumns+`
		FROM employees e LEFT JOIN departments d ON d.id = e.department_id
		WHERE e.id = $1 AND e.company_id = $2`, employeeID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

func (s *EmployeeStore) List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Employee, error) {
	return fetch(ctx, s.pool, employeesCollection, scope, l, scanEmployee)
}

func (s *EmployeeStore) Update(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, in models.EmployeeInput) (*models.Employee, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	if in.DepartmentID != nil {
		var ok bool
		err := s.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM departments WHERE id = $1 AND company_id = $2)`,
			*in.DepartmentID, tenantID).Scan(&ok)
		if err != nil {
			return nil, fmt.Errorf("check department: %w", err)
		}
		if !ok {
			return nil, apperr.Validation("department does not exist")
		}
	}

	return s.writeOne(ctx, "update employee", `
		UPDATE employees
		SET employee_number = $3, full_name = $4, email = $5, department_id = $6,
		    job_role_id = $7, exposure_group_id = $8, updated_at = now()
		WHERE id = $1 AND company_id = $2`,
		employeeID, tenantID, in.EmployeeNumber, in.FullName, in.Email, in.DepartmentID, in.JobRoleID, in.ExposureGroupID)
}

// SetActive takes a seat under the cap only when the employee is
// currently inactive.
func (s *EmployeeStore) SetActive(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, active bool) (*models.Employee, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	const stmt = `
		UPDATE employees
		SET active = $3, updated_at = now()
		WHERE id = $1 AND company_id = $2`
	if !active {
		return s.writeOne(ctx, "set employee active", stmt, employeeID, tenantID, active)
	}

	var e *models.Employee
	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := holdSeat(ctx, tx, tenantID); err != nil {
			return err
		}
		var err error
		e, err = writeEmployee(ctx, tx, "set employee active", stmt+` AND NOT active`, employeeID, tenantID, active)
		return err
	})
	if err != nil {
		return nil, err
	}
	if e == nil {
		// Missing, or already active.
		return s.GetByID(ctx, scope, employeeID)
	}
	return e, nil
}

func (s *EmployeeStore) AddTag(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, tag string) (*models.Employee, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	return s.writeOne(ctx, "add employee tag", `
		UPDATE employees
		SET tags = CASE WHEN $3 = ANY(tags) THEN tags ELSE array_append(tags, $3::text) END,
		    updated_at = now()
		WHERE id = $1 AND company_id = $2`, employeeID, tenantID, tag)
}

func (s *EmployeeStore) RemoveTag(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, tag string) (*models.Employee, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	return s.writeOne(ctx, "remove employee tag", `
		UPDATE employees
		SET tags = array_remove(tags, $3::text), updated_at = now()
		WHERE id = $1 AND company_id = $2`, employeeID, tenantID, tag)
}

func (s *EmployeeStore) SetProfileFields(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, fields []models.ProfileField) (*models.Employee, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []models.ProfileField{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode profile fields: %w", err)
	}
	return s.writeOne(ctx, "set profile fields", `
		UPDATE employees
		SET profile_fields = $3::jsonb, updated_at = now()
		WHERE id = $1 AND company_id = $2`, employeeID, tenantID, string(raw))
}
