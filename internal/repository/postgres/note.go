package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

const noteColumns = `id, company_id, employee_id, author_id, author_name, content, parent_reply_id, created_at`

type NoteStore struct {
	pool *pgxpool.Pool
}

func NewNoteStore(pool *pgxpool.Pool) *NoteStore {
	return &NoteStore{pool: pool}
}

func scanNote(row pgx.Row) (*models.Note, error) {
	var n models.Note
	err := row.Scan(
		&n.ID,
		&n.CompanyID,
		&n.EmployeeID,
		&n.AuthorID,
		&n.AuthorName,
		&n.Content,
		&n.ParentReplyID,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Create appends a note. Each note is its own row, so concurrent writers
// never overwrite each other. The employee and the parent note, if any,
// must belong to the same company and employee.
func (s *NoteStore) Create(ctx context.Context, scope tenancy.Scope, n models.Note) (*models.Note, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	note, err := scanNote(s.pool.QueryRow(ctx, `
		INSERT INTO employee_notes (company_id, employee_id, author_id, author_name, content, parent_reply_id)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::text, $5::text, $6::bigint
		WHERE EXISTS (SELECT 1 FROM employees WHERE id = $2 AND company_id = $1)
		  AND ($6::bigint IS NULL OR EXISTS (
		      SELECT 1 FROM employee_notes WHERE id = $6 AND company_id = $1 AND employee_id = $2))
		RETURNING `+noteColumns,
		tenantID, n.EmployeeID, n.AuthorID, n.AuthorName, n.Content, n.ParentReplyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("employee or parent note: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("insert note: %w", apperr.FromPg(err))
	}
	return note, nil
}

func (s *NoteStore) ListByEmployee(ctx context.Context, scope tenancy.Scope, employeeID uuid.UUID) ([]models.Note, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+noteColumns+`
		FROM employee_notes
		WHERE company_id = $1 AND employee_id = $2
		ORDER BY id`, tenantID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}
