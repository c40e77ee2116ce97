package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/db"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type CheckupStore struct {
	pool *pgxpool.Pool
}

func NewCheckupStore(pool *pgxpool.Pool) *CheckupStore {
	return &CheckupStore{pool: pool}
}

func scanCheckup(row pgx.Row) (*models.HealthCheckup, error) {
	var c models.HealthCheckup
	err := row.Scan(
		&c.ID,
		&c.CompanyID,
		&c.EmployeeID,
		&c.Investigation,
		&c.AppointmentDate,
		&c.CompletedDate,
		&c.Status,
		&c.CertificatePath,
		&c.PreviousCheckupID,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// insertCheckup is shared by Create and the follow-ups written inside
// ApplyTransition.
func insertCheckup(ctx context.Context, q pgx.Tx, tenantID uuid.UUID, c models.HealthCheckup) (*models.HealthCheckup, error) {
	return scanCheckup(q.QueryRow(ctx, `
		INSERT INTO health_checkups AS c
		    (company_id, employee_id, investigation, appointment_date, completed_date, status, certificate_path, previous_checkup_id)
		SELECT $1::uuid, $2::uuid, $3::text, $4::date, $5::date, $6::text, $7::text, $8::uuid
		WHERE EXISTS (SELECT 1 FROM employees WHERE id = $2 AND company_id = $1)
		RETURNING `+checkupColumns,
		tenantID, c.EmployeeID, c.Investigation, c.AppointmentDate, c.CompletedDate, c.Status, c.CertificatePath, c.PreviousCheckupID))
}

// Create inserts c and whatever followUps derives from the inserted row in
// one transaction. followUps may be nil.
func (s *CheckupStore) Create(ctx context.Context, scope tenancy.Scope, c models.HealthCheckup, followUps repository.CheckupFollowUps) (*models.HealthCheckup, []models.HealthCheckup, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, nil, err
	}

	var created *models.HealthCheckup
	var spawned []models.HealthCheckup
	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		created, err = insertCheckup(ctx, tx, tenantID, c)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.Validation("employee does not exist")
			}
			return fmt.Errorf("insert checkup: %w", apperr.FromPg(err))
		}
		if followUps == nil {
			return nil
		}
		for _, f := range followUps(*created) {
			fc, err := insertCheckup(ctx, tx, tenantID, f)
			if err != nil {
				return fmt.Errorf("insert follow-up checkup: %w", apperr.FromPg(err))
			}
			spawned = append(spawned, *fc)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, spawned, nil
}

func (s *CheckupStore) GetByID(ctx context.Context, scope tenancy.Scope, checkupID uuid.UUID) (*models.HealthCheckup, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	c, err := scanCheckup(s.pool.QueryRow(ctx, `
		SELECT `+checkupColumns+`
		FROM health_checkups c
		WHERE c.id = $1 AND c.company_id = $2`, checkupID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get checkup: %w", err)
	}
	return c, nil
}

func (s *CheckupStore) List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.HealthCheckup, error) {
	return fetch(ctx, s.pool, checkupsCollection, scope, l, scanCheckup)
}

// ApplyTransition locks the row, lets fn decide the new state, and writes
// the update together with any follow-ups. Two concurrent completions of the
// same checkup serialize on the row lock; the second sees the row already
// done.
func (s *CheckupStore) ApplyTransition(ctx context.Context, scope tenancy.Scope, checkupID uuid.UUID, fn repository.CheckupTransition) (*models.HealthCheckup, []models.HealthCheckup, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, nil, err
	}

	var updated *models.HealthCheckup
	var followUps []models.HealthCheckup
	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := scanCheckup(tx.QueryRow(ctx, `
			SELECT `+checkupColumns+`
			FROM health_checkups c
			WHERE c.id = $1 AND c.company_id = $2
			FOR UPDATE`, checkupID, tenantID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("lock checkup: %w", err)
		}

		next, extra, err := fn(*current)
		if err != nil {
			return err
		}

		updated, err = scanCheckup(tx.QueryRow(ctx, `
			UPDATE health_checkups AS c
			SET investigation = $3, appointment_date = $4, completed_date = $5,
			    status = $6, certificate_path = $7
			WHERE c.id = $1 AND c.company_id = $2
			RETURNING `+checkupColumns,
			checkupID, tenantID, next.Investigation, next.AppointmentDate, next.CompletedDate, next.Status, next.CertificatePath))
		if err != nil {
			return fmt.Errorf("update checkup: %w", apperr.FromPg(err))
		}

		followUps = make([]models.HealthCheckup, 0, len(extra))
		for _, f := range extra {
			created, err := insertCheckup(ctx, tx, tenantID, f)
			if err != nil {
				return fmt.Errorf("insert follow-up checkup: %w", apperr.FromPg(err))
			}
			followUps = append(followUps, *created)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, followUps, nil
}

func (s *CheckupStore) Delete(ctx context.Context, scope tenancy.Scope, checkupID uuid.UUID) (bool, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return false, err
	}

	var deleted bool
	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Successors keep existing; only their back-reference is cleared.
		if _, err := tx.Exec(ctx, `
			UPDATE health_checkups SET previous_checkup_id = NULL
			WHERE previous_checkup_id = $1 AND company_id = $2`, checkupID, tenantID); err != nil {
			return fmt.Errorf("detach successors: %w", err)
		}
		tag, err := tx.Exec(ctx, `
			DELETE FROM health_checkups
			WHERE id = $1 AND company_id = $2`, checkupID, tenantID)
		if err != nil {
			return fmt.Errorf("delete checkup: %w", err)
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
