package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
)

type dedupeRepository struct {
	BaseRepository
}

func NewDedupeRepository(base BaseRepository) repository.DedupeRepository {
	return &dedupeRepository{base}
}

// Claim relies on the primary key for atomicity: of two racing claims for
// the same dedupe key exactly one reports claimed=true. The winner's outcome
// row commits in the same transaction as the key, so the registry never holds
// a key whose recipient has no row in the outcome log.
func (r *dedupeRepository) Claim(ctx context.Context, record *model.DedupeKeyRecord, outcome func() *model.DeliveryAttempt) (bool, error) {
	if record == nil {
		return false, fmt.Errorf("record cannot be nil")
	}

	query := `
		INSERT INTO dedupe_keys (dedupe_key, event_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (dedupe_key) DO NOTHING
	`
	var claimed bool
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, record.DedupeKey, record.EventID, record.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert dedupe key: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		claimed = n > 0
		if !claimed || outcome == nil {
			return nil
		}
		if attempt := outcome(); attempt != nil {
			return insertAttempt(ctx, tx, attempt)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}
