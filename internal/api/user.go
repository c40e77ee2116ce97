package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"go.uber.org/zap"
)

// UserHandler serves the caller's own account and session.
type UserHandler struct {
	repo     repository.UserRepository
	resolver middleware.PrincipalResolver
	logger   *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, resolver middleware.PrincipalResolver, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, resolver: resolver, logger: logger}
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.repo.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

type sessionResponse struct {
	tenancy.Context
	OnboardingComplete bool `json:"onboarding_complete"`
}

// Session handles GET /v1/session. It re-reads the tenant assignment so a
// client can refresh its view after company setup without a new token.
func (h *UserHandler) Session(c *gin.Context) {
	principal, err := h.resolver.Resolve(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "resolve session")
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Context: principal, OnboardingComplete: principal.OnboardingComplete()})
}
