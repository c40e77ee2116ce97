package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hsedesk/internal/dashboard"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type SummaryLoader interface {
	Summary(ctx context.Context, scope tenancy.Scope) (*dashboard.Summary, error)
}

type DashboardHandler struct {
	summaries SummaryLoader
	activity  ActivityLister
}

func NewDashboardHandler(summaries SummaryLoader, activity ActivityLister) *DashboardHandler {
	return &DashboardHandler{summaries: summaries, activity: activity}
}

// Summary handles GET /v1/dashboard. Sections that failed to load are
// null and named in "unavailable"; the request itself still succeeds.
func (h *DashboardHandler) Summary(c *gin.Context) {
	s, err := h.summaries.Summary(c.Request.Context(), middleware.GetScope(c))
	if err != nil {
		respondError(c, err, "load dashboard")
		return
	}
	c.JSON(http.StatusOK, s)
}

// Activity handles GET /v1/activity?limit=50, newest first.
func (h *DashboardHandler) Activity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.activity.ListRecent(c.Request.Context(), middleware.GetScope(c), limit)
	if err != nil {
		respondError(c, err, "list activity")
		return
	}
	c.JSON(http.StatusOK, entries)
}
