package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/push"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
	"github.com/jwalitptl/helpdesk-api/pkg/logger"
	"github.com/jwalitptl/helpdesk-api/pkg/metrics"
)

// Service consumes push_dispatch jobs. Each attempt in a batch is terminal:
// it produces exactly one outcome row and is never retried.
type Service struct {
	attempts  repository.AttemptRepository
	transport push.Transport
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	attempts repository.AttemptRepository,
	transport push.Transport,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		attempts:  attempts,
		transport: transport,
		logger:    log,
		metrics:   m,
	}
}

func (s *Service) Kind() model.JobKind {
	return model.JobKindPushDispatch
}

// Handle processes one scheduled push batch. Per-attempt transport failures
// are recorded, not returned: a job only fails on malformed payloads.
func (s *Service) Handle(ctx context.Context, job *model.ScheduledJob) error {
	var payload model.PushDispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal push dispatch payload: %w", err)
	}

	for _, attempt := range payload.Batch {
		s.send(ctx, &payload, attempt)
	}
	return nil
}

func (s *Service) send(ctx context.Context, payload *model.PushDispatchPayload, pa model.PushAttempt) {
	row := &model.DeliveryAttempt{
		DedupeKey:     pa.DedupeKey,
		EventID:       payload.EventID,
		Channel:       model.ChannelPush,
		RecipientType: pa.RecipientType,
		RecipientID:   pa.RecipientID,
		TokenCount:    len(pa.Tokens),
		CreatedAt:     time.Now(),
	}

	// Zero tokens is a suppression, never a transport failure.
	if len(pa.Tokens) == 0 {
		reason := model.ReasonMissingPushToken
		row.Status = model.AttemptStatusSuppressed
		row.Reason = &reason
		s.record(ctx, row)
		s.metrics.AttemptsSuppressed.WithLabelValues(reason).Inc()
		return
	}

	result, err := s.transport.SendPush(ctx, pa.Tokens, payload.Title, payload.Body, payload.Data)
	if err != nil {
		msg := err.Error()
		row.Status = model.AttemptStatusFailed
		row.Error = &msg
		s.record(ctx, row)
		s.metrics.PushTokensFailed.Add(float64(len(pa.Tokens)))
		s.logger.Error(err, "push transport call failed", "dedupe_key", pa.DedupeKey)
		return
	}

	s.metrics.PushTokensSent.Add(float64(result.Sent))
	s.metrics.PushTokensFailed.Add(float64(result.Failed))

	switch {
	case result.Sent > 0 && result.Failed > 0:
		// Partial delivery stays a single delivered row; the split is
		// annotated, never split into two attempts.
		reason := model.ReasonPartialDelivery
		detail := fmt.Sprintf("%d of %d tokens failed: %s", result.Failed, len(pa.Tokens), result.FirstError())
		row.Status = model.AttemptStatusDelivered
		row.Reason = &reason
		row.Error = &detail
	case result.Sent > 0:
		row.Status = model.AttemptStatusDelivered
	default:
		msg := result.FirstError()
		row.Status = model.AttemptStatusFailed
		row.Error = &msg
	}
	s.record(ctx, row)
}

func (s *Service) record(ctx context.Context, row *model.DeliveryAttempt) {
	if err := s.attempts.Create(ctx, row); err != nil {
		s.logger.Error(err, "failed to record push attempt", "dedupe_key", row.DedupeKey)
		return
	}
	s.metrics.AttemptsCreated.WithLabelValues(string(model.ChannelPush), string(row.Status)).Inc()
}
