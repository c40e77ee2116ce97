package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"go.uber.org/zap"
)

// SetupPath is where a principal without a company is sent.
const SetupPath = "/v1/companies"

// PrincipalResolver is satisfied by *tenancy.Resolver.
type PrincipalResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (tenancy.Context, error)
}

// ResolvePrincipal loads the caller's tenant assignment from the database on
// every request. It does not require a tenant; routes like company setup run
// behind it alone.
func ResolvePrincipal(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := resolver.Resolve(c.Request.Context(), GetUserID(c))
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
				return
			}
			LoggerFrom(c).Error("failed to resolve principal", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve session"})
			return
		}
		c.Set(ContextKeyPrincipal, principal)
		c.Next()
	}
}

// RequireTenant stops requests from principals that have not finished
// onboarding and stores the tenant Scope for handlers. It must run after
// ResolvePrincipal.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		scope, err := principal.Scope()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "onboarding incomplete",
				"setup": SetupPath,
			})
			return
		}
		c.Set(ContextKeyScope, scope)
		c.Next()
	}
}

// RequireSuperAdmin guards the cross-tenant admin routes. No tenant is
// needed.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok || !principal.IsSuperAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (tenancy.Context, bool) {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return tenancy.Context{}, false
	}
	p, ok := val.(tenancy.Context)
	return p, ok
}

// GetScope returns the zero Scope when RequireTenant did not run. Every
// repository rejects the zero Scope.
func GetScope(c *gin.Context) tenancy.Scope {
	val, exists := c.Get(ContextKeyScope)
	if !exists {
		return tenancy.Scope{}
	}
	s, _ := val.(tenancy.Scope)
	return s
}
