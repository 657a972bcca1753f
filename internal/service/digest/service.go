package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/config"
	"github.com/jwalitptl/helpdesk-api/internal/email"
	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
	"github.com/jwalitptl/helpdesk-api/internal/service/resolver"
	apperrors "github.com/jwalitptl/helpdesk-api/pkg/errors"
	"github.com/jwalitptl/helpdesk-api/pkg/logger"
	"github.com/jwalitptl/helpdesk-api/pkg/metrics"
)

// Service is the debounced email aggregator. It coalesces a burst of
// same-side chat messages into one digest email per recipient. There are no
// dedupe rows on this path: the leadership check is the idempotency
// mechanism. A superseded invocation is never cancelled; it fires, loses the
// leadership check, and hands the window to the message that superseded it.
type Service struct {
	convs     repository.ConversationRepository
	directory repository.DirectoryRepository
	attempts  repository.AttemptRepository
	jobs      repository.JobRepository
	resolver  *resolver.Service
	email     email.Service
	cfg       config.NotifierConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	convs repository.ConversationRepository,
	directory repository.DirectoryRepository,
	attempts repository.AttemptRepository,
	jobs repository.JobRepository,
	resolverSvc *resolver.Service,
	emailSvc email.Service,
	cfg config.NotifierConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		convs:     convs,
		directory: directory,
		attempts:  attempts,
		jobs:      jobs,
		resolver:  resolverSvc,
		email:     emailSvc,
		cfg:       cfg,
		logger:    log,
		metrics:   m,
	}
}

func (s *Service) Kind() model.JobKind {
	return model.JobKindEmailDigest
}

func (s *Service) Handle(ctx context.Context, job *model.ScheduledJob) error {
	var payload model.EmailDigestPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal digest payload: %w", err)
	}
	return s.Run(ctx, payload)
}

// Run executes one aggregator invocation.
func (s *Service) Run(ctx context.Context, p model.EmailDigestPayload) error {
	conv, err := s.convs.Get(ctx, p.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	messages, err := s.convs.ListRecentMessages(ctx, p.ConversationID, s.cfg.MessageLookback)
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	newestIdx := -1
	for i, m := range messages {
		if relevant(m, p.Mode) {
			newestIdx = i
			break
		}
	}
	if newestIdx == -1 {
		return nil
	}
	newest := messages[newestIdx]

	if !s.holdsLeadership(p, newest) {
		s.metrics.DigestStaleSkips.Inc()
		return s.reschedule(ctx, p, newest)
	}

	batch := s.collectBatch(messages, newestIdx, p.Mode)
	thread := s.collectThread(messages)

	recipients, err := s.resolveRecipients(ctx, conv, p.Mode)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	subject, html, err := s.render(ctx, conv, batch, thread, p.Mode)
	if err != nil {
		return fmt.Errorf("failed to render digest: %w", err)
	}

	for _, rcpt := range recipients {
		s.sendOne(ctx, conv, p.EventID, newest, rcpt, subject, html)
	}
	return nil
}

// holdsLeadership decides whether this invocation still owns the window. The
// two trigger variants use different conditions: a message id must still be
// the newest relevant message, while a bare sent-at only requires that no
// newer relevant message exists. The conditions are not equivalent (a deleted
// trigger passes the second but not the first) and both call sites are live.
func (s *Service) holdsLeadership(p model.EmailDigestPayload, newest *model.Message) bool {
	if p.TriggerMessageID != nil {
		return newest.ID == *p.TriggerMessageID
	}
	if p.TriggerSentAt != nil {
		return !newest.SentAt.After(*p.TriggerSentAt)
	}
	return true
}

// reschedule hands the window to the message that superseded the trigger.
// This is the aggregator's only self-invocation: one pending job per
// conversation chain, re-armed until the window finally closes.
func (s *Service) reschedule(ctx context.Context, p model.EmailDigestPayload, newest *model.Message) error {
	payload := model.EmailDigestPayload{
		ConversationID:   p.ConversationID,
		EventID:          p.EventID,
		Mode:             p.Mode,
		TriggerMessageID: &newest.ID,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal reschedule payload: %w", err)
	}

	runAt := newest.SentAt.Add(s.cfg.EmailDebounce)
	if now := time.Now(); runAt.Before(now) {
		runAt = now
	}

	job := &model.ScheduledJob{
		Kind:    model.JobKindEmailDigest,
		Payload: raw,
		RunAt:   runAt,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to reschedule digest: %w", err)
	}

	s.logger.Debug("digest superseded, window re-armed",
		"conversation_id", p.ConversationID.String(),
		"trigger_message_id", newest.ID.String())
	return nil
}

// collectBatch walks backward from the newest relevant message, keeping
// relevant messages whose gap to the previously kept one is within the
// debounce window. Returns the batch in chronological order.
func (s *Service) collectBatch(messages []*model.Message, newestIdx int, mode model.DigestMode) []*model.Message {
	batch := []*model.Message{messages[newestIdx]}
	prev := messages[newestIdx]

	for _, m := range messages[newestIdx+1:] {
		if len(batch) >= s.cfg.MaxBatchMessages {
			break
		}
		if !relevant(m, mode) {
			continue
		}
		if prev.SentAt.Sub(m.SentAt) > s.cfg.EmailDebounce {
			break
		}
		batch = append(batch, m)
		prev = m
	}

	reverse(batch)
	return batch
}

// collectThread returns the newest thread-context messages, chronological.
func (s *Service) collectThread(messages []*model.Message) []*model.Message {
	n := s.cfg.MaxThreadMessages
	if n > len(messages) {
		n = len(messages)
	}
	thread := make([]*model.Message, n)
	copy(thread, messages[:n])
	reverse(thread)
	return thread
}

type recipient struct {
	id    uuid.UUID
	rtype model.RecipientType
	email string
}

func (s *Service) resolveRecipients(ctx context.Context, conv *model.Conversation, mode model.DigestMode) ([]recipient, error) {
	if mode == model.DigestModeVisitorEmail {
		visitor, err := s.directory.GetVisitor(ctx, conv.VisitorID)
		switch {
		case apperrors.IsNotFound(err):
			// A deleted visitor is a legitimate no-op.
			return nil, nil
		case err != nil:
			return nil, fmt.Errorf("failed to load visitor %s: %w", conv.VisitorID, err)
		case visitor.Email == "":
			return nil, nil
		}
		return []recipient{{id: visitor.ID, rtype: model.RecipientTypeVisitor, email: visitor.Email}}, nil
	}

	candidates, err := s.resolver.Resolve(ctx, resolver.Input{
		WorkspaceID: conv.WorkspaceID,
		Audience:    model.AudienceAgent,
		Actor:       model.VisitorActor(conv.VisitorID),
		Axis:        model.AxisNewVisitorMessage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve digest recipients: %w", err)
	}

	var out []recipient
	for _, c := range candidates {
		if c.IsActor || c.OutOfWorkspace || c.Email == "" {
			continue
		}
		if !c.Preference.AllowsChannel(model.AxisNewVisitorMessage, model.ChannelEmail) {
			continue
		}
		out = append(out, recipient{id: c.ID, rtype: c.RecipientType, email: c.Email})
	}
	return out, nil
}

// sendOne emails a single recipient and appends the outcome row. The key
// embeds the batch-leader message id, so distinct batches of one
// conversation stay distinct in the log; the event id is the one that armed
// the window, keeping digest outcomes visible in the event's attempt listing.
func (s *Service) sendOne(ctx context.Context, conv *model.Conversation, eventID uuid.UUID, newest *model.Message, rcpt recipient, subject, html string) {
	row := &model.DeliveryAttempt{
		DedupeKey:     fmt.Sprintf("digest:%s:%s:%s:email", conv.ID, newest.ID, rcpt.id),
		EventID:       eventID,
		Channel:       model.ChannelEmail,
		RecipientType: rcpt.rtype,
		RecipientID:   rcpt.id,
		Status:        model.AttemptStatusDelivered,
		CreatedAt:     time.Now(),
	}

	if err := s.email.Send(ctx, rcpt.email, subject, html); err != nil {
		msg := err.Error()
		row.Status = model.AttemptStatusFailed
		row.Error = &msg
		s.logger.Error(err, "digest email failed",
			"conversation_id", conv.ID.String(),
			"recipient_id", rcpt.id.String())
	} else {
		s.metrics.DigestEmailsSent.Inc()
	}

	if err := s.attempts.Create(ctx, row); err != nil {
		s.logger.Error(err, "failed to record digest attempt", "dedupe_key", row.DedupeKey)
		return
	}
	s.metrics.AttemptsCreated.WithLabelValues(string(model.ChannelEmail), string(row.Status)).Inc()
}

func relevant(m *model.Message, mode model.DigestMode) bool {
	if mode == model.DigestModeMemberEmail {
		return m.FromVisitor()
	}
	return m.FromTeam()
}

func reverse(msgs []*model.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
