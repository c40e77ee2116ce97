package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

var (
	subscriptionTiers    = []string{"free", "starter", "professional", "enterprise"}
	subscriptionStatuses = []string{"active", "trialing", "past_due", "cancelled"}
)

type CompanyService struct {
	companies repository.CompanyRepository
}

func NewCompanyService(companies repository.CompanyRepository) *CompanyService {
	return &CompanyService{companies: companies}
}

// Setup creates the caller's company and makes them its admin. A principal
// that already belongs to a company cannot create another.
func (s *CompanyService) Setup(ctx context.Context, principal tenancy.Context, name string) (*models.Company, error) {
	if principal.OnboardingComplete() {
		return nil, fmt.Errorf("%w: user already belongs to a company", apperr.ErrConflict)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("company name is required")
	}
	return s.companies.CreateForOwner(ctx, name, principal.UserID)
}

func (s *CompanyService) Get(ctx context.Context, companyID uuid.UUID) (*models.Company, error) {
	c, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("company %s: %w", companyID, apperr.ErrNotFound)
	}
	return c, nil
}

func (s *CompanyService) List(ctx context.Context) ([]models.Company, error) {
	return s.companies.List(ctx)
}

func (s *CompanyService) UpdateSubscription(ctx context.Context, companyID uuid.UUID, sub models.Subscription) (*models.Company, error) {
	if !slices.Contains(subscriptionTiers, sub.Tier) {
		return nil, apperr.Validation("unknown tier %q", sub.Tier)
	}
	if !slices.Contains(subscriptionStatuses, sub.Status) {
		return nil, apperr.Validation("unknown subscription status %q", sub.Status)
	}
	if sub.EmployeeCap < 1 {
		return nil, apperr.Validation("employee_cap must be positive")
	}
	c, err := s.companies.UpdateSubscription(ctx, companyID, sub)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("company %s: %w", companyID, apperr.ErrNotFound)
	}
	return c, nil
}
