// Package tenancy resolves which company a principal acts for and provides
// Scope, the only way to address tenant-owned data.
package tenancy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
)

// Scope identifies the tenant a data operation runs against. The zero value
// is invalid; repositories reject it, so a query that forgot its tenant
// fails instead of running globally.
type Scope struct {
	tenantID uuid.UUID
}

func NewScope(tenantID uuid.UUID) (Scope, error) {
	if tenantID == uuid.Nil {
		return Scope{}, apperr.ErrNoTenant
	}
	return Scope{tenantID: tenantID}, nil
}

// MustScope is NewScope for tests and fixtures.
func MustScope(tenantID uuid.UUID) Scope {
	s, err := NewScope(tenantID)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Scope) TenantID() uuid.UUID { return s.tenantID }

func (s Scope) IsZero() bool { return s.tenantID == uuid.Nil }

// Check returns the tenant id or ErrNoTenant for the zero Scope.
func (s Scope) Check() (uuid.UUID, error) {
	if s.IsZero() {
		return uuid.Nil, apperr.ErrNoTenant
	}
	return s.tenantID, nil
}

// Context is what the server knows about the caller after resolution.
type Context struct {
	UserID      uuid.UUID  `json:"user_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	TenantID    *uuid.UUID `json:"tenant_id"`
	Role        string     `json:"role"`
}

func (c Context) OnboardingComplete() bool {
	return c.TenantID != nil && *c.TenantID != uuid.Nil
}

func (c Context) Scope() (Scope, error) {
	if !c.OnboardingComplete() {
		return Scope{}, apperr.ErrNoTenant
	}
	return NewScope(*c.TenantID)
}

func (c Context) IsSuperAdmin() bool {
	return c.Role == models.RoleSuperAdmin
}

// PrincipalStore looks a user up by id across all tenants.
type PrincipalStore interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Resolver reads the tenant assignment from the database on every call.
// Token claims are never trusted for the tenant: a company created after
// login must be visible without re-issuing the token.
type Resolver struct {
	users PrincipalStore
}

func NewResolver(users PrincipalStore) *Resolver {
	return &Resolver{users: users}
}

func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (Context, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return Context{}, fmt.Errorf("resolve principal: %w", err)
	}
	if u == nil {
		return Context{}, fmt.Errorf("resolve principal %s: %w", userID, apperr.ErrNotFound)
	}
	return Context{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		TenantID:    u.CompanyID,
		Role:        u.Role,
	}, nil
}
