package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type CompanyService interface {
	Setup(ctx context.Context, principal tenancy.Context, name string) (*models.Company, error)
	Get(ctx context.Context, companyID uuid.UUID) (*models.Company, error)
	List(ctx context.Context) ([]models.Company, error)
	UpdateSubscription(ctx context.Context, companyID uuid.UUID, sub models.Subscription) (*models.Company, error)
}

type CompanyHandler struct {
	svc CompanyService
}

func NewCompanyHandler(svc CompanyService) *CompanyHandler {
	return &CompanyHandler{svc: svc}
}

type setupCompanyRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

// Setup handles POST /v1/companies. It is the one tenant-creating route and
// runs without a tenant; the caller becomes the company's admin.
func (h *CompanyHandler) Setup(c *gin.Context) {
	var req setupCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	principal, _ := middleware.GetPrincipal(c)
	company, err := h.svc.Setup(c.Request.Context(), principal, req.Name)
	if err != nil {
		respondError(c, err, "set up company")
		return
	}
	c.JSON(http.StatusCreated, company)
}

// Current handles GET /v1/company: the caller's own company with its
// subscription tier and employee cap.
func (h *CompanyHandler) Current(c *gin.Context) {
	company, err := h.svc.Get(c.Request.Context(), middleware.GetScope(c).TenantID())
	if err != nil {
		respondError(c, err, "get company")
		return
	}
	c.JSON(http.StatusOK, company)
}

// List handles GET /v1/admin/companies (super admins only).
func (h *CompanyHandler) List(c *gin.Context) {
	companies, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "list companies")
		return
	}
	c.JSON(http.StatusOK, companies)
}

type subscriptionRequest struct {
	Tier        string `json:"tier" binding:"required"`
	Status      string `json:"status" binding:"required"`
	EmployeeCap int    `json:"employee_cap" binding:"required,min=1"`
}

// UpdateSubscription handles PUT /v1/admin/companies/:id/subscription
func (h *CompanyHandler) UpdateSubscription(c *gin.Context) {
	companyID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	company, err := h.svc.UpdateSubscription(c.Request.Context(), companyID, models.Subscription{
		Tier:        req.Tier,
		Status:      req.Status,
		EmployeeCap: req.EmployeeCap,
	})
	if err != nil {
		respondError(c, err, "update subscription")
		return
	}
	c.JSON(http.StatusOK, company)
}
