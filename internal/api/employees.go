package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/dashboard"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/service"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type EmployeeService interface {
	Create(ctx context.Context, scope tenancy.Scope, actor service.Actor, in models.EmployeeInput) (*models.Employee, service.Outcome, error)
	Get(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) (*models.Employee, error)
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Employee, error)
	Update(ctx context.Context, scope tenancy.Scope, actor service.Actor, employeeID uuid.UUID, in models.EmployeeInput) (*models.Employee, service.Outcome, error)
	SetActive(ctx context.Context, scope tenancy.Scope, actor service.Actor, employeeID uuid.UUID, active bool) (*models.Employee, service.Outcome, error)
	AddTag(ctx context.Context, scope tenancy.Scope, actor service.Actor, employeeID uuid.UUID, tag string) (*models.Employee, service.Outcome, error)
	RemoveTag(ctx context.Context, scope tenancy.Scope, actor service.Actor, employeeID uuid.UUID, tag string) (*models.Employee, service.Outcome, error)
	SetProfileFields(ctx context.Context, scope tenancy.Scope, actor service.Actor, employeeID uuid.UUID, fields []models.ProfileField) (*models.Employee, service.Outcome, error)
	AddNote(ctx context.Context, scope tenancy.Scope, actor service.Actor, employeeID uuid.UUID, content string, parentReplyID *int64) (*models.Note, service.Outcome, error)
	ListNotes(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) ([]models.Note, error)
}

type ProfileLoader interface {
	EmployeeProfile(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) (*dashboard.Profile, error)
}

type ActivityLister interface {
	ListForEmployee(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID, limit int) ([]models.ActivityEntry, error)
	ListRecent(ctx context.Context, scope tenancy.Scope, limit int) ([]models.ActivityEntry, error)
}

type EmployeeHandler struct {
	svc      EmployeeService
	profiles ProfileLoader
	activity ActivityLister
}

func NewEmployeeHandler(svc EmployeeService, profiles ProfileLoader, activity ActivityLister) *EmployeeHandler {
	return &EmployeeHandler{svc: svc, profiles: profiles, activity: activity}
}

// Create handles POST /v1/employees
func (h *EmployeeHandler) Create(c *gin.Context) {
	var in models.EmployeeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	e, out, err := h.svc.Create(c.Request.Context(), middleware.GetScope(c), actor(c), in)
	if err != nil {
		respondError(c, err, "create employee")
		return
	}
	respondMutation(c, http.StatusCreated, e, out)
}

// List handles GET /v1/employees?filter=active:eq:true&order=full_name.asc
func (h *EmployeeHandler) List(c *gin.Context) {
	l, err := query.ParseList(c.Request.URL.Query())
	if err != nil {
		respondError(c, err, "list employees")
		return
	}
	employees, err := h.svc.List(c.Request.Context(), middleware.GetScope(c), l)
	if err != nil {
		respondError(c, err, "list employees")
		return
	}
	c.JSON(http.StatusOK, employees)
}

// Get handles GET /v1/employees/:id
func (h *EmployeeHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	e, err := h.svc.Get(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		respondError(c, err, "get employee")
		return
	}
	c.JSON(http.StatusOK, e)
}

// Update handles PATCH /v1/employees/:id
func (h *EmployeeHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in models.EmployeeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	e, out, err := h.svc.Update(c.Request.Context(), middleware.GetScope(c), actor(c), id, in)
	if err != nil {
		respondError(c, err, "update employee")
		return
	}
	respondMutation(c, http.StatusOK, e, out)
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive handles PUT /v1/employees/:id/active. Employees are deactivated,
// never deleted.
func (h *EmployeeHandler) SetActive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	e, out, err := h.svc.SetActive(c.Request.Context(), middleware.GetScope(c), actor(c), id, *req.Active)
	if err != nil {
		respondError(c, err, "change employee status")
		return
	}
	respondMutation(c, http.StatusOK, e, out)
}

type tagRequest struct {
	Tag string `json:"tag" binding:"required"`
}

// AddTag handles POST /v1/employees/:id/tags
func (h *EmployeeHandler) AddTag(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	e, out, err := h.svc.AddTag(c.Request.Context(), middleware.GetScope(c), actor(c), id, req.Tag)
	if err != nil {
		respondError(c, err, "add tag")
		return
	}
	respondMutation(c, http.StatusOK, e, out)
}

// RemoveTag handles DELETE /v1/employees/:id/tags/:tag
func (h *EmployeeHandler) RemoveTag(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	e, out, err := h.svc.RemoveTag(c.Request.Context(), middleware.GetScope(c), actor(c), id, c.Param("tag"))
	if err != nil {
		respondError(c, err, "remove tag")
		return
	}
	respondMutation(c, http.StatusOK, e, out)
}

type profileFieldsRequest struct {
	Fields []models.ProfileField `json:"fields" binding:"dive"`
}

// SetProfileFields handles PUT /v1/employees/:id/profile-fields
func (h *EmployeeHandler) SetProfileFields(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req profileFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Fields == nil {
		req.Fields = []models.ProfileField{}
	}
	e, out, err := h.svc.SetProfileFields(c.Request.Context(), middleware.GetScope(c), actor(c), id, req.Fields)
	if err != nil {
		respondError(c, err, "update profile fields")
		return
	}
	respondMutation(c, http.StatusOK, e, out)
}

type createNoteRequest struct {
	Content       string `json:"content" binding:"required"`
	ParentReplyID *int64 `json:"parent_reply_id"`
}

// AddNote handles POST /v1/employees/:id/notes
func (h *EmployeeHandler) AddNote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	n, out, err := h.svc.AddNote(c.Request.Context(), middleware.GetScope(c), actor(c), id, req.Content, req.ParentReplyID)
	if err != nil {
		respondError(c, err, "add note")
		return
	}
	respondMutation(c, http.StatusCreated, n, out)
}

// ListNotes handles GET /v1/employees/:id/notes, oldest first.
func (h *EmployeeHandler) ListNotes(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	notes, err := h.svc.ListNotes(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		respondError(c, err, "list notes")
		return
	}
	c.JSON(http.StatusOK, notes)
}

// Profile handles GET /v1/employees/:id/profile
func (h *EmployeeHandler) Profile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.profiles.EmployeeProfile(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		respondError(c, err, "load employee profile")
		return
	}
	c.JSON(http.StatusOK, p)
}

// Activity handles GET /v1/employees/:id/activity?limit=50
func (h *EmployeeHandler) Activity(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.activity.ListForEmployee(c.Request.Context(), middleware.GetScope(c), id, limit)
	if err != nil {
		respondError(c, err, "list activity")
		return
	}
	c.JSON(http.StatusOK, entries)
}
