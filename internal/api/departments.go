package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/repository"
)

type DepartmentHandler struct {
	repo repository.DepartmentRepository
}

func NewDepartmentHandler(repo repository.DepartmentRepository) *DepartmentHandler {
	return &DepartmentHandler{repo: repo}
}

type createDepartmentRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

// Create handles POST /v1/departments
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req createDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	d, err := h.repo.Create(c.Request.Context(), middleware.GetScope(c), name)
	if err != nil {
		respondError(c, err, "create department")
		return
	}
	c.JSON(http.StatusCreated, d)
}

// List handles GET /v1/departments
func (h *DepartmentHandler) List(c *gin.Context) {
	departments, err := h.repo.List(c.Request.Context(), middleware.GetScope(c))
	if err != nil {
		respondError(c, err, "list departments")
		return
	}
	c.JSON(http.StatusOK, departments)
}
