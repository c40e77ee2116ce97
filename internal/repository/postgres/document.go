package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/db"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/query"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.ID,
		&d.CompanyID,
		&d.EmployeeID,
		&d.Title,
		&d.Category,
		&d.FilePath,
		&d.SizeBytes,
		&d.MimeType,
		&d.UploadedBy,
		&d.ExpiresAt,
		&d.IsPublic,
		&d.Tags,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return &d, nil
}

func (s *DocumentStore) Create(ctx context.Context, scope tenancy.Scope, d models.Document) (*models.Document, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}

	doc, err := scanDocument(s.pool.QueryRow(ctx, `
		INSERT INTO documents AS d
		    (company_id, employee_id, title, category, file_path, size_bytes, mime_type, uploaded_by, expires_at, is_public, tags)
		SELECT $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::bigint, $7::text, $8::uuid, $9::date, $10::boolean, $11::text[]
		WHERE $2::uuid IS NULL
		   OR EXISTS (SELECT 1 FROM employees WHERE id = $2 AND company_id = $1)
		RETURNING `+documentColumns,
		tenantID, d.EmployeeID, d.Title, d.Category, d.FilePath, d.SizeBytes, d.MimeType, d.UploadedBy, d.ExpiresAt, d.IsPublic, tags))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Validation("employee does not exist")
		}
		return nil, fmt.Errorf("insert document: %w", apperr.FromPg(err))
	}
	return doc, nil
}

func (s *DocumentStore) GetByID(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID) (*models.Document, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	doc, err := scanDocument(s.pool.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		WHERE d.id = $1 AND d.company_id = $2`, documentID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *DocumentStore) List(ctx context.Context, scope tenancy.Scope, l query.List) ([]models.Document, error) {
	return fetch(ctx, s.pool, documentsCollection, scope, l, scanDocument)
}

// DeleteWith deletes the row inside a transaction and commits only after
// removeObject succeeds, so metadata never points at a deleted object and a
// failed object delete leaves both in place. Returns nil, nil when the
// document does not exist.
func (s *DocumentStore) DeleteWith(ctx context.Context, scope tenancy.Scope, documentID uuid.UUID, removeObject func(path string) error) (*models.Document, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	var deleted *models.Document
	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		doc, err := scanDocument(tx.QueryRow(ctx, `
			DELETE FROM documents AS d
			WHERE d.id = $1 AND d.company_id = $2
			RETURNING `+documentColumns, documentID, tenantID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("delete document: %w", err)
		}
		if err := removeObject(doc.FilePath); err != nil {
			return fmt.Errorf("remove object %s: %w", doc.FilePath, err)
		}
		deleted = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
