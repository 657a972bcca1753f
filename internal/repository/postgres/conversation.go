package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
	apperrors "github.com/jwalitptl/helpdesk-api/pkg/errors"
)

type conversationRepository struct {
	BaseRepository
}

func NewConversationRepository(base BaseRepository) repository.ConversationRepository {
	return &conversationRepository{base}
}

func (r *conversationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	query := `
		SELECT id, workspace_id, visitor_id, assignee_id, subject, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`
	var conv model.Conversation
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound(fmt.Sprintf("conversation %s", id), err)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*model.Message, error) {
	query := `
		SELECT id, conversation_id, sender_type, sender_id, body, sent_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at DESC, id DESC
		LIMIT $2
	`
	var messages []*model.Message
	err := r.db.SelectContext(ctx, &messages, query, conversationID, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

type ticketRepository struct {
	BaseRepository
}

func NewTicketRepository(base BaseRepository) repository.TicketRepository {
	return &ticketRepository{base}
}

func (r *ticketRepository) Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	query := `
		SELECT id, workspace_id, visitor_id, conversation_id, assignee_id, status, title, created_at, updated_at
		FROM tickets
		WHERE id = $1
	`
	var ticket model.Ticket
	if err := r.db.GetContext(ctx, &ticket, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound(fmt.Sprintf("ticket %s", id), err)
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}
