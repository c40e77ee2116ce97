package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/models"
	"github.com/lalith-99/hsedesk/internal/realtime"
	"github.com/lalith-99/hsedesk/internal/repository"
	"github.com/lalith-99/hsedesk/internal/tenancy"
)

const (
	maxMessageLength  = 4000
	defaultMessageCap = 50
	maxMessagePage    = 200
)

type MessageService struct {
	messages   repository.MessageRepository
	dispatcher *Dispatcher
}

func NewMessageService(messages repository.MessageRepository, dispatcher *Dispatcher) *MessageService {
	return &MessageService{messages: messages, dispatcher: dispatcher}
}

// Send stores a message and pushes it to subscribers. Chat is not part of
// the activity trail.
func (s *MessageService) Send(ctx context.Context, scope tenancy.Scope, actor Actor, recipientID *uuid.UUID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation("message body is required")
	}
	if len(body) > maxMessageLength {
		return nil, apperr.Validation("message longer than %d characters", maxMessageLength)
	}

	m, err := s.messages.Create(ctx, scope, actor.ID, recipientID, body)
	if err != nil {
		return nil, err
	}
	s.dispatcher.After(ctx, scope, actor, Change{Table: "messages", Type: realtime.Insert, Record: m})
	return m, nil
}

func (s *MessageService) List(ctx context.Context, scope tenancy.Scope, before int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultMessageCap
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}
	return s.messages.List(ctx, scope, before, limit)
}
