package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
)

type attemptRepository struct {
	BaseRepository
}

func NewAttemptRepository(base BaseRepository) repository.AttemptRepository {
	return &attemptRepository{base}
}

// Append-only: there is no corresponding UPDATE anywhere. Status is fixed
// at insert time.
const insertAttemptQuery = `
	INSERT INTO delivery_attempts (
		dedupe_key, event_id, channel, recipient_type, recipient_id,
		token_count, status, reason, error, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
	)
`

// insertAttempt writes one outcome row on the given executor, so the dedupe
// repository can reuse it inside its claim transaction.
func insertAttempt(ctx context.Context, ex sqlx.ExtContext, attempt *model.DeliveryAttempt) error {
	_, err := ex.ExecContext(ctx, insertAttemptQuery,
		attempt.DedupeKey,
		attempt.EventID,
		attempt.Channel,
		attempt.RecipientType,
		attempt.RecipientID,
		attempt.TokenCount,
		attempt.Status,
		attempt.Reason,
		attempt.Error,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery attempt: %w", err)
	}
	return nil
}

func (r *attemptRepository) Create(ctx context.Context, attempt *model.DeliveryAttempt) error {
	if attempt == nil {
		return fmt.Errorf("attempt cannot be nil")
	}
	return insertAttempt(ctx, r.db, attempt)
}

func (r *attemptRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.DeliveryAttempt, error) {
	query := `
		SELECT dedupe_key, event_id, channel, recipient_type, recipient_id,
			token_count, status, reason, error, created_at
		FROM delivery_attempts
		WHERE event_id = $1
		ORDER BY created_at ASC
	`
	var attempts []*model.DeliveryAttempt
	err := r.db.SelectContext(ctx, &attempts, query, eventID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery attempts: %w", err)
	}
	return attempts, nil
}
