package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
	"github.com/jwalitptl/helpdesk-api/pkg/logger"
	"github.com/jwalitptl/helpdesk-api/pkg/metrics"
)

// JobHandler processes one kind of scheduled job.
type JobHandler interface {
	Kind() model.JobKind
	Handle(ctx context.Context, job *model.ScheduledJob) error
}

type JobProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// JobProcessor polls the scheduled_jobs table for due work and dispatches it
// to the registered handlers. A claimed job always runs to completion; there
// is no cancellation and no retry of handler failures.
type JobProcessor struct {
	repo     repository.JobRepository
	handlers map[model.JobKind]JobHandler
	config   JobProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewJobProcessor(
	repo repository.JobRepository,
	config JobProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	handlers ...JobHandler,
) *JobProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}

	registry := make(map[model.JobKind]JobHandler, len(handlers))
	for _, h := range handlers {
		registry[h.Kind()] = h
	}

	return &JobProcessor{
		repo:     repo,
		handlers: registry,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

func (p *JobProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting job processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down job processor")
			return
		case <-ticker.C:
			if err := p.processJobs(ctx); err != nil {
				p.logger.Error(err, "Failed to process jobs")
			}
		}
	}
}

func (p *JobProcessor) processJobs(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.JobProcessingLatency)
	defer timer.ObserveDuration()

	jobs, err := p.repo.ClaimDue(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_due_jobs", "error").Inc()
		return fmt.Errorf("failed to claim due jobs: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_due_jobs", "success").Inc()

	for _, job := range jobs {
		p.metrics.JobQueueLag.Observe(time.Since(job.RunAt).Seconds())
		if err := p.processJob(ctx, job); err != nil {
			p.logger.Error(err, "Failed to process job",
				"job_id", job.ID.String(),
				"kind", string(job.Kind))
		}
	}
	return nil
}

func (p *JobProcessor) processJob(ctx context.Context, job *model.ScheduledJob) error {
	handler, ok := p.handlers[job.Kind]
	if !ok {
		err := fmt.Errorf("no handler registered for kind %q", job.Kind)
		if markErr := p.repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			p.logger.Error(markErr, "Failed to mark job failed", "job_id", job.ID.String())
		}
		p.metrics.JobsFailed.WithLabelValues(string(job.Kind)).Inc()
		return err
	}

	if err := handler.Handle(ctx, job); err != nil {
		p.metrics.JobsFailed.WithLabelValues(string(job.Kind)).Inc()
		if markErr := p.repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			p.logger.Error(markErr, "Failed to mark job failed", "job_id", job.ID.String())
		}
		return err
	}

	p.metrics.JobsProcessed.WithLabelValues(string(job.Kind)).Inc()
	if err := p.repo.MarkProcessed(ctx, job.ID); err != nil {
		p.logger.Error(err, "Failed to mark job processed", "job_id", job.ID.String())
		return err
	}
	return nil
}

// StartCleanup periodically deletes processed jobs older than the retention
// window.
func (p *JobProcessor) StartCleanup(ctx context.Context, retain, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-retain)
			count, err := p.repo.DeleteProcessedBefore(ctx, cutoff)
			if err != nil {
				p.logger.Error(err, "Failed to clean up processed jobs")
				continue
			}
			if count > 0 {
				p.logger.Debug("Cleaned up processed jobs", "deleted", count)
			}
		}
	}
}
