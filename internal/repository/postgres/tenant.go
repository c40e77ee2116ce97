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
)

const companyColumns = `id, name, subscription_tier, subscription_status, employee_cap, created_at`

type CompanyStore struct {
	pool *pgxpool.Pool
}

func NewCompanyStore(pool *pgxpool.Pool) *CompanyStore {
	return &CompanyStore{pool: pool}
}

func scanCompany(row pgx.Row) (*models.Company, error) {
	var c models.Company
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.SubscriptionTier,
		&c.SubscriptionStatus,
		&c.EmployeeCap,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CompanyStore) CreateForOwner(ctx context.Context, name string, ownerID uuid.UUID) (*models.Company, error) {
	var company *models.Company
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		c, err := scanCompany(tx.QueryRow(ctx, `
			INSERT INTO companies (name)
			VALUES ($1)
			RETURNING `+companyColumns, name))
		if err != nil {
			return fmt.Errorf("insert company: %w", err)
		}

		// Only a user without a company can become an owner. Zero rows
		// means the user already belongs somewhere (or does not exist).
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET company_id = $1, role = CASE WHEN role = 'super_admin' THEN role ELSE 'admin' END
			WHERE id = $2 AND company_id IS NULL`, c.ID, ownerID)
		if err != nil {
			return fmt.Errorf("assign owner: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("assign owner %s: %w", ownerID, apperr.ErrConflict)
		}
		company = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

func (s *CompanyStore) GetByID(ctx context.Context, companyID uuid.UUID) (*models.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx, `
		SELECT `+companyColumns+`
		FROM companies
		WHERE id = $1`, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

func (s *CompanyStore) List(ctx context.Context) ([]models.Company, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+companyColumns+`
		FROM companies
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	companies := make([]models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}
	return companies, nil
}

func (s *CompanyStore) UpdateSubscription(ctx context.Context, companyID uuid.UUID, sub models.Subscription) (*models.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx, `
		UPDATE companies
		SET subscription_tier = $2, subscription_status = $3, employee_cap = $4
		WHERE id = $1
		RETURNING `+companyColumns, companyID, sub.Tier, sub.Status, sub.EmployeeCap))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update subscription: %w", apperr.FromPg(err))
	}
	return c, nil
}
