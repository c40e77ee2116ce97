package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/service"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type ComplianceService interface {
	CreateAudit(ctx context.Context, scope tenancy.Scope, actor service.Actor, title string, scheduledFor *time.Time) (*models.Audit, service.Outcome, error)
	SetAuditStatus(ctx context.Context, scope tenancy.Scope, actor service.Actor, auditID uuid.UUID, status models.AuditStatus) (*models.Audit, service.Outcome, error)
	CreateTraining(ctx context.Context, scope tenancy.Scope, actor service.Actor, employeeID *uuid.UUID, title string, validUntil *time.Time) (*models.Training, service.Outcome, error)
	CreateMeasure(ctx context.Context, scope tenancy.Scope, actor service.Actor, title string, dueDate *time.Time) (*models.Measure, service.Outcome, error)
	SetMeasureStatus(ctx context.Context, scope tenancy.Scope, actor service.Actor, measureID uuid.UUID, status models.MeasureStatus) (*models.Measure, service.Outcome, error)
}

// ComplianceHandler serves audits, trainings and corrective measures.
type ComplianceHandler struct {
	svc ComplianceService
}

func NewComplianceHandler(svc ComplianceService) *ComplianceHandler {
	return &ComplianceHandler{svc: svc}
}

type createAuditRequest struct {
	Title        string  `json:"title" binding:"required"`
	ScheduledFor *string `json:"scheduled_for"`
}

func (h *ComplianceHandler) CreateAudit(c *gin.Context) {
	var req createAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	when, err := parseDate("scheduled_for", req.ScheduledFor)
	if err != nil {
		respondError(c, err, "create audit")
		return
	}
	a, out, err := h.svc.CreateAudit(c.Request.Context(), middleware.GetScope(c), actor(c), req.Title, when)
	if err != nil {
		respondError(c, err, "create audit")
		return
	}
	respondMutation(c, http.StatusCreated, a, out)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *ComplianceHandler) SetAuditStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	a, out, err := h.svc.SetAuditStatus(c.Request.Context(), middleware.GetScope(c), actor(c), id, models.AuditStatus(req.Status))
	if err != nil {
		respondError(c, err, "update audit")
		return
	}
	respondMutation(c, http.StatusOK, a, out)
}

type createTrainingRequest struct {
	Title      string     `json:"title" binding:"required"`
	EmployeeID *uuid.UUID `json:"employee_id"`
	ValidUntil *string    `json:"valid_until"`
}

func (h *ComplianceHandler) CreateTraining(c *gin.Context) {
	var req createTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	until, err := parseDate("valid_until", req.ValidUntil)
	if err != nil {
		respondError(c, err, "create training")
		return
	}
	t, out, err := h.svc.CreateTraining(c.Request.Context(), middleware.GetScope(c), actor(c), req.EmployeeID, req.Title, until)
	if err != nil {
		respondError(c, err, "create training")
		return
	}
	respondMutation(c, http.StatusCreated, t, out)
}

type createMeasureRequest struct {
	Title   string  `json:"title" binding:"required"`
	DueDate *string `json:"due_date"`
}

func (h *ComplianceHandler) CreateMeasure(c *gin.Context) {
	var req createMeasureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		respondError(c, err, "create measure")
		return
	}
	m, out, err := h.svc.CreateMeasure(c.Request.Context(), middleware.GetScope(c), actor(c), req.Title, due)
	if err != nil {
		respondError(c, err, "create measure")
		return
	}
	respondMutation(c, http.StatusCreated, m, out)
}

func (h *ComplianceHandler) SetMeasureStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, out, err := h.svc.SetMeasureStatus(c.Request.Context(), middleware.GetScope(c), actor(c), id, models.MeasureStatus(req.Status))
	if err != nil {
		respondError(c, err, "update measure")
		return
	}
	respondMutation(c, http.StatusOK, m, out)
}
