package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/service"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type TaskService interface {
	Create(ctx context.Context, scope tenancy.Scope, actor service.Actor, in service.TaskInput) (*models.Task, service.Outcome, error)
	Get(ctx context.Context, scope tenancy.Scope, taskID uuid.UUID) (*models.Task, error)
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Task, error)
	SetStatus(ctx context.Context, scope tenancy.Scope, actor service.Actor, taskID uuid.UUID, status models.TaskStatus, requestedAt time.Time) (*models.Task, bool, service.Outcome, error)
	Delete(ctx context.Context, scope tenancy.Scope, actor service.Actor, taskID uuid.UUID) (service.Outcome, error)
}

type TaskHandler struct {
	svc TaskService
}

func NewTaskHandler(svc TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

type createTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	AssigneeID  *uuid.UUID `json:"assignee_id"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *string    `json:"due_date"`
}

// Create handles POST /v1/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		respondError(c, err, "create task")
		return
	}
	t, out, err := h.svc.Create(c.Request.Context(), middleware.GetScope(c), actor(c), service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Priority:    models.TaskPriority(req.Priority),
		Status:      models.TaskStatus(req.Status),
		DueDate:     due,
	})
	if err != nil {
		respondError(c, err, "create task")
		return
	}
	respondMutation(c, http.StatusCreated, t, out)
}

// List handles GET /v1/tasks
func (h *TaskHandler) List(c *gin.Context) {
	l, err := query.ParseList(c.Request.URL.Query())
	if err != nil {
		respondError(c, err, "list tasks")
		return
	}
	tasks, err := h.svc.List(c.Request.Context(), middleware.GetScope(c), l)
	if err != nil {
		respondError(c, err, "list tasks")
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Get handles GET /v1/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		respondError(c, err, "get task")
		return
	}
	c.JSON(http.StatusOK, t)
}

type taskStatusRequest struct {
	Status      string     `json:"status" binding:"required"`
	RequestedAt *time.Time `json:"requested_at"`
}

type taskStatusResponse struct {
	Data     *models.Task `json:"data"`
	Applied  bool         `json:"applied"`
	Warnings []string     `json:"warnings,omitempty"`
}

// SetStatus handles PUT /v1/tasks/:id/status. Clients send the time the
// user clicked as requested_at; a toggle older than the last applied one is
// ignored and the current row is returned with applied=false.
func (h *TaskHandler) SetStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req taskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	var requestedAt time.Time
	if req.RequestedAt != nil {
		requestedAt = *req.RequestedAt
	}
	t, applied, out, err := h.svc.SetStatus(c.Request.Context(), middleware.GetScope(c), actor(c), id, models.TaskStatus(req.Status), requestedAt)
	if err != nil {
		respondError(c, err, "update task status")
		return
	}
	c.JSON(http.StatusOK, taskStatusResponse{Data: t, Applied: applied, Warnings: out.Warnings})
}

// Delete handles DELETE /v1/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	out, err := h.svc.Delete(c.Request.Context(), middleware.GetScope(c), actor(c), id)
	if err != nil {
		respondError(c, err, "delete task")
		return
	}
	respondMutation(c, http.StatusOK, gin.H{"id": id}, out)
}
