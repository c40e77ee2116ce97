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

const messageColumns = `id, company_id, sender_id, recipient_id, body, created_at`

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	err := row.Scan(
		&msg.ID,
		&msg.CompanyID,
		&msg.SenderID,
		&msg.RecipientID,
		&msg.Body,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageStore) Create(ctx context.Context, scope tenancy.Scope, senderID uuid.UUID, recipientID *uuid.UUID, body string) (*models.Message, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	// The recipient must be a user of the same company.
	msg, err := scanMessage(s.pool.QueryRow(ctx, `
		INSERT INTO messages (company_id, sender_id, recipient_id, body)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::text
		WHERE $3::uuid IS NULL
		   OR EXISTS (SELECT 1 FROM users WHERE id = $3 AND company_id = $1)
		RETURNING `+messageColumns, tenantID, senderID, recipientID, body))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Validation("recipient is not part of this company")
		}
		return nil, fmt.Errorf("insert message: %w", apperr.FromPg(err))
	}
	return msg, nil
}

// List pages backwards by id. before=0 is the first page.
func (s *MessageStore) List(ctx context.Context, scope tenancy.Scope, before int64, limit int) ([]models.Message, error) {
	tenantID, err := scope.Check()
	if err != nil {
		return nil, err
	}

	var sql string
	var args []any
	if before > 0 {
		sql = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE company_id = $1 AND id < $2
			ORDER BY id DESC
			LIMIT $3`
		args = []any{tenantID, before, limit}
	} else {
		sql = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE company_id = $1
			ORDER BY id DESC
			LIMIT $2`
		args = []any{tenantID, limit}
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
