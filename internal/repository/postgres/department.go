package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type DepartmentStore struct {
	pool *pgxpool.Pool
}

func NewDepartmentStore(pool *pgxpool.Pool) *DepartmentStore {
	return &DepartmentStore{pool: pool}
}

func (s *DepartmentStore) Create(ctx context.Context, scope tenancy.Scope, name string) (*models.Department, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	var d models.Department
	err = s.pool.QueryRow(ctx, `
		INSERT INTO departments (company_id, name)
		VALUES ($1, $2)
		RETURNING id, company_id, name, created_at`, tenantID, name).Scan(
		&d.ID,
		&d.CompanyID,
		&d.Name,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert department: %w", apperr.FromPg(err))
	}
	return &d, nil
}

func (s *DepartmentStore) List(ctx context.Context, scope tenancy.Scope) ([]models.Department, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, name, created_at
		FROM departments
		WHERE company_id = $1
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	departments := make([]models.Department, 0)
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Name, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		departments = append(departments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return departments, nil
}
