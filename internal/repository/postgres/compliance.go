package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

// ComplianceStore holds audits, trainings and measures. They feed the
// dashboard counts and are otherwise simple records.
type ComplianceStore struct {
	pool *pgxpool.Pool
}

func NewComplianceStore(pool *pgxpool.Pool) *ComplianceStore {
	return &ComplianceStore{pool: pool}
}

// Audits returns a view satisfying repository.AuditRepository.
func (s *ComplianceStore) Audits() *AuditStore { return &AuditStore{pool: s.pool} }

func (s *ComplianceStore) Trainings() *TrainingStore { return &TrainingStore{pool: s.pool} }

func (s *ComplianceStore) Measures() *MeasureStore { return &MeasureStore{pool: s.pool} }

type AuditStore struct {
	pool *pgxpool.Pool
}

func scanAudit(row pgx.Row) (*models.Audit, error) {
	var a models.Audit
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Title, &a.Status, &a.ScheduledFor, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AuditStore) Create(ctx context.Context, scope tenancy.Scope, a models.Audit) (*models.Audit, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	audit, err := scanAudit(s.pool.QueryRow(ctx, `
		INSERT INTO audits AS a (company_id, title, status, scheduled_for)
		VALUES ($1, $2, $3, $4)
		RETURNING `+auditsCollection.Columns, tenantID, a.Title, a.Status, a.ScheduledFor))
	if err != nil {
		return nil, fmt.Errorf("insert audit: %w", apperr.FromPg(err))
	}
	return audit, nil
}

func (s *AuditStore) SetStatus(ctx context.Context, scope tenancy.Scope, auditID uuid.UUID, status models.AuditStatus) (*models.Audit, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	audit, err := scanAudit(s.pool.QueryRow(ctx, `
		UPDATE audits AS a SET status = $3
		WHERE a.id = $1 AND a.company_id = $2
		RETURNING `+auditsCollection.Columns, auditID, tenantID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update audit: %w", apperr.FromPg(err))
	}
	return audit, nil
}

type TrainingStore struct {
	pool *pgxpool.Pool
}

func (s *TrainingStore) Create(ctx context.Context, scope tenancy.Scope, t models.Training) (*models.Training, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	var tr models.Training
	err = s.pool.QueryRow(ctx, `
		INSERT INTO trainings AS tr (company_id, employee_id, title, valid_until)
		SELECT $1::uuid, $2::uuid, $3::text, $4::date
		WHERE $2::uuid IS NULL
		   OR EXISTS (SELECT 1 FROM employees WHERE id = $2 AND company_id = $1)
		RETURNING `+trainingsCollection.Columns, tenantID, t.EmployeeID, t.Title, t.ValidUntil).Scan(
		&tr.ID, &tr.CompanyID, &tr.EmployeeID, &tr.Title, &tr.ValidUntil, &tr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Validation("employee does not exist")
		}
		return nil, fmt.Errorf("insert training: %w", apperr.FromPg(err))
	}
	return &tr, nil
}

type MeasureStore struct {
	pool *pgxpool.Pool
}

func scanMeasure(row pgx.Row) (*models.Measure, error) {
	var m models.Measure
	if err := row.Scan(&m.ID, &m.CompanyID, &m.Title, &m.Status, &m.DueDate, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MeasureStore) Create(ctx context.Context, scope tenancy.Scope, m models.Measure) (*models.Measure, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	measure, err := scanMeasure(s.pool.QueryRow(ctx, `
		INSERT INTO measures AS m (company_id, title, status, due_date)
		VALUES ($1, $2, $3, $4)
		RETURNING `+measuresCollection.Columns, tenantID, m.Title, m.Status, m.DueDate))
	if err != nil {
		return nil, fmt.Errorf("insert measure: %w", apperr.FromPg(err))
	}
	return measure, nil
}

func (s *MeasureStore) SetStatus(ctx context.Context, scope tenancy.Scope, measureID uuid.UUID, status models.MeasureStatus) (*models.Measure, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	measure, err := scanMeasure(s.pool.QueryRow(ctx, `
		UPDATE measures AS m SET status = $3
		WHERE m.id = $1 AND m.company_id = $2
		RETURNING `+measuresCollection.Columns, measureID, tenantID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update measure: %w", apperr.FromPg(err))
	}
	return measure, nil
}
