package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
	apperrors "github.com/jwalitptl/helpdesk-api/pkg/errors"
)

type eventRepository struct {
	BaseRepository
}

func NewEventRepository(base BaseRepository) repository.EventRepository {
	return &eventRepository{base}
}

// eventRow flattens the actor variant and JSON data for storage.
type eventRow struct {
	ID                uuid.UUID       `db:"id"`
	WorkspaceID       uuid.UUID       `db:"workspace_id"`
	EventKey          string          `db:"event_key"`
	EventType         string          `db:"event_type"`
	Domain            string          `db:"domain"`
	Audience          string          `db:"audience"`
	ActorType         string          `db:"actor_type"`
	ActorUserID       *uuid.UUID      `db:"actor_user_id"`
	ActorVisitorID    *uuid.UUID      `db:"actor_visitor_id"`
	ConversationID    *uuid.UUID      `db:"conversation_id"`
	TicketID          *uuid.UUID      `db:"ticket_id"`
	OutboundMessageID *uuid.UUID      `db:"outbound_message_id"`
	CampaignID        *uuid.UUID      `db:"campaign_id"`
	Title             string          `db:"title"`
	BodyPreview       string          `db:"body_preview"`
	Data              json.RawMessage `db:"data"`
	CreatedAt         time.Time       `db:"created_at"`
}

func (r *eventRepository) Create(ctx context.Context, event *model.NotificationEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO notification_events (
			id, workspace_id, event_key, event_type, domain, audience,
			actor_type, actor_user_id, actor_visitor_id,
			conversation_id, ticket_id, outbound_message_id, campaign_id,
			title, body_preview, data, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.WorkspaceID,
		event.EventKey,
		event.EventType,
		event.Domain,
		event.Audience,
		event.Actor.Type,
		event.Actor.UserID,
		event.Actor.VisitorID,
		event.Entity.ConversationID,
		event.Entity.TicketID,
		event.Entity.OutboundMessageID,
		event.Entity.CampaignID,
		event.Title,
		event.BodyPreview,
		data,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification event: %w", err)
	}
	return nil
}

func (r *eventRepository) Get(ctx context.Context, id uuid.UUID) (*model.NotificationEvent, error) {
	query := `
		SELECT id, workspace_id, event_key, event_type, domain, audience,
			actor_type, actor_user_id, actor_visitor_id,
			conversation_id, ticket_id, outbound_message_id, campaign_id,
			title, body_preview, data, created_at
		FROM notification_events
		WHERE id = $1
	`
	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound(fmt.Sprintf("notification event %s", id), err)
		}
		return nil, fmt.Errorf("failed to get notification event: %w", err)
	}

	event := &model.NotificationEvent{
		ID:          row.ID,
		WorkspaceID: row.WorkspaceID,
		EventKey:    row.EventKey,
		EventType:   row.EventType,
		Domain:      model.EventDomain(row.Domain),
		Audience:    model.Audience(row.Audience),
		Actor: model.Actor{
			Type:      model.ActorType(row.ActorType),
			UserID:    row.ActorUserID,
			VisitorID: row.ActorVisitorID,
		},
		Entity: model.EntityRef{
			ConversationID:    row.ConversationID,
			TicketID:          row.TicketID,
			OutboundMessageID: row.OutboundMessageID,
			CampaignID:        row.CampaignID,
		},
		Title:       row.Title,
		BodyPreview: row.BodyPreview,
		CreatedAt:   row.CreatedAt,
	}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &event.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
	}
	return event, nil
}
