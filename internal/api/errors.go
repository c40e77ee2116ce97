package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/service"
	"go.uber.org/zap"
)

// respondError maps err onto a status code. Client errors echo the error
// text; anything unclassified is logged and answered with a generic 500.
func respondError(c *gin.Context, err error, action string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNoTenant):
		c.JSON(http.StatusConflict, gin.H{"error": "onboarding incomplete", "setup": middleware.SetupPath})
		return
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrDuplicate), errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrForbidden), errors.Is(err, apperr.ErrLimitReached):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidTransition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrConfirmationRequired):
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": "confirmation required, repeat with ?confirm=true"})
		return
	}

	if status == http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error("failed to "+action, zap.Error(err))
		c.JSON(status, gin.H{"error": "failed to " + action})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// mutationResponse wraps a written record with any non-fatal warnings.
type mutationResponse struct {
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
}

func respondMutation(c *gin.Context, status int, data any, out service.Outcome) {
	c.JSON(status, mutationResponse{Data: data, Warnings: out.Warnings})
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// actor is the principal performing a mutation.
func actor(c *gin.Context) service.Actor {
	p, _ := middleware.GetPrincipal(c)
	name := p.DisplayName
	if name == "" {
		name = p.Email
	}
	return service.Actor{ID: p.UserID, Name: name}
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}

// parseDate reads an optional YYYY-MM-DD value. Empty means unset.
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return nil, apperr.Validation("%s must be YYYY-MM-DD", field)
	}
	return &d, nil
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
