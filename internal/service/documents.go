package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/observ"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/realtime"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/storage"
	"github.com/lalith-99/hsedesk/internal/tenancy"
	"go.uber.org/zap"
)

// allowedMIME lists what may be uploaded. Detection looks at content, not at
// the client's Content-Type or the file name.
var allowedMIME = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"text/plain",
	"text/csv",
	"application/msword",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type UploadInput struct {
	Title      string
	Category   models.DocumentCategory
	EmployeeID *uuid.UUID
	ExpiresAt  *time.Time
	IsPublic   bool
	Tags       []string
	Filename   string
	Content    io.Reader
}

type DocumentService struct {
	documents  repository.DocumentRepository
	bucket     storage.Bucket
	dispatcher *Dispatcher
	metrics    *observ.Metrics
	logger     *zap.Logger
	maxBytes   int64
	now        func() time.Time
}

func NewDocumentService(documents repository.DocumentRepository, bucket storage.Bucket, dispatcher *Dispatcher, metrics *observ.Metrics, logger *zap.Logger, maxBytes int64) *DocumentService {
	return &DocumentService{
		documents:  documents,
		bucket:     bucket,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		maxBytes:   maxBytes,
		now:        time.Now,
	}
}

func documentChange(d *models.Document, typ realtime.EventType, action string, at models.ActionType) Change {
	return Change{
		Table:      "documents",
		Type:       typ,
		Record:     d,
		EmployeeID: d.EmployeeID,
		Action:     action,
		ActionType: at,
		Details:    d.Title,
		Metadata: map[string]any{
			"category":   string(d.Category),
			"size_bytes": d.SizeBytes,
		},
	}
}

func (s *DocumentService) readContent(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, apperr.Validation("file is required")
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, apperr.Validation("file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperr.Validation("file larger than %d bytes", s.maxBytes)
	}
	return data, nil
}

func detectMIME(data []byte) (*mimetype.MIME, error) {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		for _, allowed := range allowedMIME {
			if m.Is(allowed) {
				return mt, nil
			}
		}
	}
	return nil, apperr.Validation("unsupported file type %s", mt.String())
}

// Upload stores the object first and then the metadata row. If the row
// cannot be written the object is removed again so no orphan remains.
func (s *DocumentService) Upload(ctx context.Context, scope tenancy.Scope, actor Actor, in UploadInput) (*models.Document, Outcome, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, Outcome{}, apperr.Validation("title is required")
	}
	if in.Category == "" {
		in.Category = models.CategoryOther
	}
	if !in.Category.Valid() {
		return nil, Outcome{}, apperr.Validation("unknown category %q", in.Category)
	}

	data, err := s.readContent(in.Content)
	if err != nil {
		return nil, Outcome{}, err
	}
	mt, err := detectMIME(data)
	if err != nil {
		return nil, Outcome{}, err
	}

	filename := in.Filename
	if !strings.Contains(filename, ".") {
		filename += mt.Extension()
	}
	path, err := storage.ObjectPath(scope.TenantID(), string(in.Category), filename, s.now())
	if err != nil {
		return nil, Outcome{}, err
	}

	cache := "private, max-age=0"
	if in.IsPublic {
		cache = "public, max-age=3600"
	}
	err = s.bucket.Upload(ctx, path, bytes.NewReader(data), storage.UploadOptions{
		ContentType:  mt.String(),
		CacheControl: cache,
		NoOverwrite:  true,
	})
	s.metrics.StorageOp("upload", err)
	if err != nil {
		return nil, Outcome{}, fmt.Errorf("upload document: %w", err)
	}

	doc, err := s.documents.Create(ctx, scope, models.Document{
		EmployeeID: in.EmployeeID,
		Title:      in.Title,
		Category:   in.Category,
		FilePath:   path,
		SizeBytes:  int64(len(data)),
		MimeType:   mt.String(),
		UploadedBy: actor.ID,
		ExpiresAt:  in.ExpiresAt,
		IsPublic:   in.IsPublic,
		Tags:       cleanTags(in.Tags),
	})
	if err != nil {
		delErr := s.bucket.Delete(context.WithoutCancel(ctx), path)
		s.metrics.StorageOp("delete", delErr)
		if delErr != nil {
			s.logger.Error("orphaned object after failed document insert",
				zap.String("path", path), zap.Error(delErr))
		}
		return nil, Outcome{}, err
	}

	out := s.dispatcher.After(ctx, scope, actor, documentChange(doc, realtime.Insert, "Document uploaded", models.ActionUpload))
	return doc, out, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (s *DocumentService) Get(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID) (*models.Document, error) {
	d, err := s.documents.GetByID(ctx, scope, documentID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, apperr.ErrNotFound)
	}
	return d, nil
}

func (s *DocumentService) List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Document, error) {
	return s.documents.List(ctx, scope, l)
}

// Download returns the stored bytes. The path must sit under the caller's
// tenant prefix even though the row was already tenant-filtered.
func (s *DocumentService) Download(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID) (*models.Document, []byte, error) {
	d, err := s.Get(ctx, scope, documentID)
	if err != nil {
		return nil, nil, err
	}
	if storage.TenantOf(d.FilePath) != scope.TenantID().String() {
		return nil, nil, fmt.Errorf("document %s path outside tenant: %w", documentID, apperr.ErrForbidden)
	}

	data, err := s.bucket.Download(ctx, d.FilePath)
	s.metrics.StorageOp("download", err)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("document %s file: %w", documentID, apperr.ErrNotFound)
		}
		return nil, nil, err
	}
	return d, data, nil
}

// PublicURL is only available for documents flagged public.
func (s *DocumentService) PublicURL(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID) (string, error) {
	d, err := s.Get(ctx, scope, documentID)
	if err != nil {
		return "", err
	}
	if !d.IsPublic {
		return "", fmt.Errorf("document %s is private: %w", documentID, apperr.ErrForbidden)
	}
	return s.bucket.PublicURL(d.FilePath), nil
}

// Delete removes the object and the row together: the row delete commits
// only after the object is gone (or was already missing).
func (s *DocumentService) Delete(ctx context.Context, scope tenancy.Scope, actor Actor, documentID uuid.UUID, confirmed bool) (Outcome, error) {
	if !confirmed {
		return Outcome{}, apperr.ErrConfirmationRequired
	}

	d, err := s.documents.DeleteWith(ctx, scope, documentID, func(path string) error {
		err := s.bucket.Delete(ctx, path)
		s.metrics.StorageOp("delete", err)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	if d == nil {
		return Outcome{}, fmt.Errorf("document %s: %w", documentID, apperr.ErrNotFound)
	}
	return s.dispatcher.After(ctx, scope, actor, documentChange(d, realtime.Delete, "Document deleted", models.ActionDelete)), nil
}
