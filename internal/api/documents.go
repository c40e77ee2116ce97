package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/service"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type DocumentService interface {
	Upload(ctx context.Context, scope tenancy.Scope, actor service.Actor, in service.UploadInput) (*models.Document, service.Outcome, error)
	Get(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID) (*models.Document, error)
	List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Document, error)
	Download(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID) (*models.Document, []byte, error)
	PublicURL(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID) (string, error)
	Delete(ctx context.Context, scope tenancy.Scope, actor service.Actor, documentID uuid.UUID, confirmed bool) (service.Outcome, error)
}

// multipartSlack covers form fields and part headers on top of the file.
const multipartSlack = 1 << 20

type DocumentHandler struct {
	svc      DocumentService
	maxBytes int64
}

// NewDocumentHandler caps request bodies at maxUploadBytes plus room for
// the other form fields.
func NewDocumentHandler(svc DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxBytes: maxUploadBytes}
}

// Upload handles POST /v1/documents as multipart/form-data with a "file"
// part plus title, category, employee_id, expires_at, is_public and a
// comma-separated tags field.
func (h *DocumentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartSlack)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload larger than %d bytes", h.maxBytes)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	in := service.UploadInput{
		Title:    c.PostForm("title"),
		Category: models.DocumentCategory(c.PostForm("category")),
		Filename: fh.Filename,
	}
	if v := c.PostForm("employee_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee_id"})
			return
		}
		in.EmployeeID = &id
	}
	expires := c.PostForm("expires_at")
	if in.ExpiresAt, err = parseDate("expires_at", &expires); err != nil {
		respondError(c, err, "upload document")
		return
	}
	if v := c.PostForm("is_public"); v != "" {
		if in.IsPublic, err = strconv.ParseBool(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid is_public"})
			return
		}
	}
	if v := c.PostForm("tags"); v != "" {
		in.Tags = strings.Split(v, ",")
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, fmt.Errorf("open upload: %w", err), "upload document")
		return
	}
	defer f.Close()
	in.Content = f

	d, out, err := h.svc.Upload(c.Request.Context(), middleware.GetScope(c), actor(c), in)
	if err != nil {
		respondError(c, err, "upload document")
		return
	}
	respondMutation(c, http.StatusCreated, d, out)
}

// List handles GET /v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	l, err := query.ParseList(c.Request.URL.Query())
	if err != nil {
		respondError(c, err, "list documents")
		return
	}
	docs, err := h.svc.List(c.Request.Context(), middleware.GetScope(c), l)
	if err != nil {
		respondError(c, err, "list documents")
		return
	}
	c.JSON(http.StatusOK, docs)
}

// Get handles GET /v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, err := h.svc.Get(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		respondError(c, err, "get document")
		return
	}
	c.JSON(http.StatusOK, d)
}

// Download handles GET /v1/documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, data, err := h.svc.Download(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		respondError(c, err, "download document")
		return
	}
	name := d.FilePath[strings.LastIndex(d.FilePath, "/")+1:]
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, d.MimeType, data)
}

// URL handles GET /v1/documents/:id/url. Only public documents have one.
func (h *DocumentHandler) URL(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	u, err := h.svc.PublicURL(c.Request.Context(), middleware.GetScope(c), id)
	if err != nil {
		respondError(c, err, "get document url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u})
}

// Delete handles DELETE /v1/documents/:id?confirm=true. The stored file is
// removed together with the metadata row.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	out, err := h.svc.Delete(c.Request.Context(), middleware.GetScope(c), actor(c), id, confirmed(c))
	if err != nil {
		respondError(c, err, "delete document")
		return
	}
	respondMutation(c, http.StatusOK, gin.H{"id": id}, out)
}
