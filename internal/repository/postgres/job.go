package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
)

type jobRepository struct {
	BaseRepository
}

func NewJobRepository(base BaseRepository) repository.JobRepository {
	return &jobRepository{base}
}

func (r *jobRepository) Create(ctx context.Context, job *model.ScheduledJob) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	if job.Payload == nil {
		return fmt.Errorf("job payload cannot be nil")
	}

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now()
	job.Status = model.JobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.RunAt.IsZero() {
		job.RunAt = now
	}

	query := `
		INSERT INTO scheduled_jobs (
			id, kind, payload, status, run_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.Kind,
		job.Payload,
		job.Status,
		job.RunAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled job: %w", err)
	}
	return nil
}

// ClaimDue hands each due pending job to exactly one worker: the inner
// SELECT locks candidate rows with SKIP LOCKED and the UPDATE flips them to
// processing in the same statement, so concurrent pollers never claim the
// same job and never block on each other.
func (r *jobRepository) ClaimDue(ctx context.Context, limit int) ([]*model.ScheduledJob, error) {
	query := `
		UPDATE scheduled_jobs
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id
			FROM scheduled_jobs
			WHERE status = 'pending'
			AND run_at <= NOW()
			ORDER BY run_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, status, run_at, error_message, created_at, processed_at, updated_at
	`
	var jobs []*model.ScheduledJob
	err := r.db.SelectContext(ctx, &jobs, query, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim due jobs: %w", err)
	}
	return jobs, nil
}

func (r *jobRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scheduled_jobs
		SET status = 'processed', processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark job processed: %w", err)
	}
	return nil
}

func (r *jobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE scheduled_jobs
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func (r *jobRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM scheduled_jobs
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed jobs: %w", err)
	}
	return result.RowsAffected()
}
