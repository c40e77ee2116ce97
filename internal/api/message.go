package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/service"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type MessageService interface {
	Send(ctx context.Context, scope tenancy.Scope, actor service.Actor, recipientID *uuid.UUID, body string) (*models.Message, error)
	List(ctx context.Context, scope tenancy.Scope, before int64, limit int) ([]models.Message, error)
}

type MessageHandler struct {
	svc MessageService
}

func NewMessageHandler(svc MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type createMessageRequest struct {
	Body        string     `json:"body" binding:"required"`
	RecipientID *uuid.UUID `json:"recipient_id"`
}

// Create handles POST /v1/messages. A nil recipient broadcasts to the
// whole company.
func (h *MessageHandler) Create(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, err := h.svc.Send(c.Request.Context(), middleware.GetScope(c), actor(c), req.RecipientID, req.Body)
	if err != nil {
		respondError(c, err, "send message")
		return
	}
	c.JSON(http.StatusCreated, m)
}

// List handles GET /v1/messages?before=123&limit=50
//
// Cursor pagination: "before" is a message id, 0 starts from the latest.
func (h *MessageHandler) List(c *gin.Context) {
	var before int64
	if b := c.Query("before"); b != "" {
		var err error
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil || before < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
	}

	messages, err := h.svc.List(c.Request.Context(), middleware.GetScope(c), before, limit)
	if err != nil {
		respondError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}
