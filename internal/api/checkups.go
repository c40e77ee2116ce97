package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/service"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type CheckupService interface {
	Create(ctx context.Context, scope tenancy.Scope, actor service.Actor, in service.CheckupInput) (*models.HealthCheckup, service.Outcome, error)
	Get(ctx context.Context, scope tenancy.Scope, checkupID uuid.UUID) (*models.HealthCheckup, error)
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.HealthCheckup, error)
	UpdateStatus(ctx context.Context, scope tenancy.Scope, actor service.Actor, checkupID uuid.UUID, u service.CheckupUpdate) (*models.HealthCheckup, []models.HealthCheckup, service.Outcome, error)
	Delete(ctx context.Context, scope tenancy.Scope, actor service.Actor, checkupID uuid.UUID, confirmed bool) (service.Outcome, error)
}

type CheckupHandler struct {
	svc CheckupService
}

func NewCheckupHandler(svc CheckupService) *CheckupHandler {
	return &CheckupHandler{svc: svc}
}

type createCheckupRequest struct {
	EmployeeID      uuid.UUID `json:"employee_id" binding:"required"`
	Investigation   string    `json:"investigation" binding:"required"`
	AppointmentDate string    `json:"appointment_date" binding:"required"`
	Status          string    `json:"status"`
	CompletedDate   *string   `json:"completed_date"`
	CertificatePath *string   `json:"certificate_path"`
}

// Create handles POST /v1/checkups
func (h *CheckupHandler) Create(c *gin.Context) {
	var req createCheckupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	appointment, err := parseDate("appointment_date", &req.AppointmentDate)
	if err != nil {
		respondError(c, err, "create checkup")
		return
	}
	if appointment == nil {
		respondError(c, apperr.Validation("appointment_date is required"), "create checkup")
		return
	}
	completed, err := parseDate("completed_date", req.CompletedDate)
	if err != nil {
		respondError(c, err, "create checkup")
		return
	}
	hc, out, err := h.svc.Create(c.Request.Context(), middleware.GetScope(c), actor(c), service.CheckupInput{
		EmployeeID:      req.EmployeeID,
		Investigation:   req.Investigation,
		AppointmentDate: *appointment,
		Status:          models.CheckupStatus(req.Status),
		CompletedDate:   completed,
		CertificatePath: req.CertificatePath,
	})
	if err != nil {
		respondError(c, err, "create checkup")
		return
	}
	respondMutation(c, http.StatusCreated, hc, out)
}

// List handles GET /v1/checkups
func (h *CheckupHandler) List(c *gin.Context) {
	l, err := query.ParseList(c.Request.URL.Query())
	if err != nil {
		respondError(c, err, "list checkups")
		return
	}
	checkups, err := h.svc.List(c.Request.Context(), middleware.GetScope(c), l)
	if err != nil {
		respondError(c, err, "list checkups")
		return
	}
	c.JSON(http.StatusOK, checkups)
}

// Get handles GET /v1/checkups/:id
func (h *CheckupHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	hc, err := h.svc.Get(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		respondError(c, err, "get checkup")
		return
	}
	c.JSON(http.StatusOK, hc)
}

type checkupStatusRequest struct {
	Status          string  `json:"status" binding:"required"`
	CompletedDate   *string `json:"completed_date"`
	CertificatePath *string `json:"certificate_path"`
}

type checkupStatusResponse struct {
	Data      *models.HealthCheckup  `json:"data"`
	FollowUps []models.HealthCheckup `json:"follow_ups"`
	Warnings  []string               `json:"warnings,omitempty"`
}

// UpdateStatus handles PUT /v1/checkups/:id/status. Follow-up checkups
// scheduled by the transition come back in follow_ups.
func (h *CheckupHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req checkupStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	completed, err := parseDate("completed_date", req.CompletedDate)
	if err != nil {
		respondError(c, err, "update checkup")
		return
	}
	hc, followUps, out, err := h.svc.UpdateStatus(c.Request.Context(), middleware.GetScope(c), actor(c), id, service.CheckupUpdate{
		Status:          models.CheckupStatus(req.Status),
		CompletedDate:   completed,
		CertificatePath: req.CertificatePath,
	})
	if err != nil {
		respondError(c, err, "update checkup")
		return
	}
	if followUps == nil {
		followUps = []models.HealthCheckup{}
	}
	c.JSON(http.StatusOK, checkupStatusResponse{Data: hc, FollowUps: followUps, Warnings: out.Warnings})
}

// Delete handles DELETE /v1/checkups/:id?confirm=true
func (h *CheckupHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	out, err := h.svc.Delete(c.Request.Context(), middleware.GetScope(c), actor(c), id, confirmed(c))
	if err != nil {
		respondError(c, err, "delete checkup")
		return
	}
	respondMutation(c, http.StatusOK, gin.H{"id": id}, out)
}
