package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/config"
	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
	"github.com/jwalitptl/helpdesk-api/internal/service/resolver"
	apperrors "github.com/jwalitptl/helpdesk-api/pkg/errors"
	"github.com/jwalitptl/helpdesk-api/pkg/logger"
	"github.com/jwalitptl/helpdesk-api/pkg/messaging"
	"github.com/jwalitptl/helpdesk-api/pkg/metrics"
)

// Descriptor is the caller-facing shape of one notification-worthy
// occurrence. EventKey is optional; when empty the router derives one from
// the event type, entity, actor and time.
type Descriptor struct {
	EventType   string
	Domain      model.EventDomain
	Audience    model.Audience
	WorkspaceID uuid.UUID
	Actor       model.Actor
	Entity      model.EntityRef
	Title       string
	Body        string
	Data        map[string]interface{}
	AgentIDs    []uuid.UUID
	VisitorIDs  []uuid.UUID
	Excludes    []uuid.UUID
	EventKey    string

	// Channels, when set, restricts fan-out to the listed channels.
	Channels []model.Channel
}

// NewMessageInput is the chat-specific entry point's input.
type NewMessageInput struct {
	ConversationID uuid.UUID
	Content        string
	SenderType     model.SenderType
	MessageID      *uuid.UUID
	SenderID       *uuid.UUID
	SentAt         *time.Time
	Channel        *model.Channel
	Mode           *model.DigestMode
}

type Service struct {
	events   repository.EventRepository
	dedupe   repository.DedupeRepository
	attempts repository.AttemptRepository
	jobs     repository.JobRepository
	convs    repository.ConversationRepository
	tickets  repository.TicketRepository
	resolver *resolver.Service
	broker   messaging.Broker
	cfg      config.NotifierConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	events repository.EventRepository,
	dedupe repository.DedupeRepository,
	attempts repository.AttemptRepository,
	jobs repository.JobRepository,
	convs repository.ConversationRepository,
	tickets repository.TicketRepository,
	resolverSvc *resolver.Service,
	broker messaging.Broker,
	cfg config.NotifierConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		events:   events,
		dedupe:   dedupe,
		attempts: attempts,
		jobs:     jobs,
		convs:    convs,
		tickets:  tickets,
		resolver: resolverSvc,
		broker:   broker,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
	}
}

// channelsFor returns the delivery channels the router fans a recipient type
// out to. Email is not routed here: it goes through the debounced digest
// path only.
func channelsFor(rt model.RecipientType) []model.Channel {
	if rt == model.RecipientTypeAgent {
		return []model.Channel{model.ChannelPush, model.ChannelWeb}
	}
	return []model.Channel{model.ChannelPush, model.ChannelWidget}
}

func restrictChannels(chs, allowed []model.Channel) []model.Channel {
	if len(allowed) == 0 {
		return chs
	}
	out := make([]model.Channel, 0, len(chs))
	for _, ch := range chs {
		for _, a := range allowed {
			if ch == a {
				out = append(out, ch)
				break
			}
		}
	}
	return out
}

// RouteEvent materializes a NotificationEvent and one delivery attempt per
// eligible recipient/channel, then schedules asynchronous push dispatch.
// Suppressions are outcomes, not errors; only missing entities and storage
// failures abort the call.
func (s *Service) RouteEvent(ctx context.Context, d Descriptor) (*model.RouteResult, error) {
	if err := s.validate(&d); err != nil {
		return nil, err
	}

	derivedVisitor, err := s.loadEntity(ctx, &d)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	eventKey := d.EventKey
	if eventKey == "" {
		eventKey = fmt.Sprintf("%s:%s:%s:%d", d.EventType, d.Entity.ID(), d.Actor.KeyPart(), now.Unix())
	}

	event := &model.NotificationEvent{
		ID:          uuid.New(),
		WorkspaceID: d.WorkspaceID,
		EventKey:    eventKey,
		EventType:   d.EventType,
		Domain:      d.Domain,
		Audience:    d.Audience,
		Actor:       d.Actor,
		Entity:      d.Entity,
		Title:       d.Title,
		BodyPreview: model.TruncatePreview(d.Body),
		Data:        d.Data,
		CreatedAt:   now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create notification event: %w", err)
	}

	axis := model.AxisForEventType(d.EventType)
	candidates, err := s.resolver.Resolve(ctx, resolver.Input{
		WorkspaceID:      d.WorkspaceID,
		Audience:         d.Audience,
		Actor:            d.Actor,
		Axis:             axis,
		AgentIDs:         d.AgentIDs,
		VisitorIDs:       d.VisitorIDs,
		DerivedVisitorID: derivedVisitor,
		Excludes:         d.Excludes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}

	result := &model.RouteResult{EventID: event.ID, EventKey: eventKey}
	var batch []model.PushAttempt

	for _, c := range candidates {
		for _, ch := range restrictChannels(channelsFor(c.RecipientType), d.Channels) {
			dk := model.DedupeKey(eventKey, c.RecipientType, c.ID, ch)

			reason := suppressionReason(c, axis, ch)

			// The winner's outcome row commits atomically with the dedupe
			// key. Push winners carry no row here: theirs is written by the
			// dispatcher. Web/widget publish inside the claim so a failed
			// broker still yields a committed failed row.
			var inApp *model.DeliveryAttempt
			var outcome func() *model.DeliveryAttempt
			switch {
			case reason != "":
				outcome = func() *model.DeliveryAttempt {
					return s.suppressedAttempt(event.ID, dk, c, ch, reason)
				}
			case ch == model.ChannelPush:
				outcome = nil
			default:
				outcome = func() *model.DeliveryAttempt {
					inApp = s.publishInApp(ctx, event, dk, c, ch)
					return inApp
				}
			}

			claimed, err := s.dedupe.Claim(ctx, &model.DedupeKeyRecord{
				DedupeKey: dk,
				EventID:   event.ID,
				CreatedAt: time.Now(),
			}, outcome)
			if err != nil {
				return nil, fmt.Errorf("failed to register dedupe key: %w", err)
			}
			if !claimed {
				s.recordSuppressed(ctx, event.ID, dk, c, ch, model.ReasonDuplicate)
				result.Suppressed++
				continue
			}

			switch {
			case reason != "":
				s.metrics.AttemptsCreated.WithLabelValues(string(ch), string(model.AttemptStatusSuppressed)).Inc()
				s.metrics.AttemptsSuppressed.WithLabelValues(reason).Inc()
				result.Suppressed++
			case ch == model.ChannelPush:
				batch = append(batch, model.PushAttempt{
					DedupeKey:     dk,
					RecipientType: c.RecipientType,
					RecipientID:   c.ID,
					Tokens:        c.Tokens,
				})
				result.Scheduled++
			default:
				if inApp != nil {
					s.metrics.AttemptsCreated.WithLabelValues(string(ch), string(inApp.Status)).Inc()
				}
				result.Scheduled++
			}
		}
	}

	if len(batch) > 0 {
		if err := s.schedulePushDispatch(ctx, event, batch); err != nil {
			return nil, err
		}
	}

	s.metrics.EventsRouted.WithLabelValues(string(d.Domain), string(d.Audience)).Inc()
	s.logger.Debug("event routed",
		"event_id", event.ID.String(),
		"event_key", eventKey,
		"scheduled", result.Scheduled,
		"suppressed", result.Suppressed)
	return result, nil
}

// NotifyNewMessage is the chat entry point: it fires the immediate push/web
// event for the receiving side and arms the debounced email digest.
func (s *Service) NotifyNewMessage(ctx context.Context, in NewMessageInput) (*model.RouteResult, error) {
	conv, err := s.convs.Get(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	sentAt := time.Now()
	if in.SentAt != nil {
		sentAt = *in.SentAt
	}

	d := Descriptor{
		Domain:      model.DomainChat,
		WorkspaceID: conv.WorkspaceID,
		Entity:      model.EntityRef{ConversationID: &conv.ID},
		Title:       messageTitle(conv, in.SenderType),
		Body:        in.Content,
		Data: map[string]interface{}{
			"conversation_id": conv.ID.String(),
		},
	}
	if in.MessageID != nil {
		d.Data["message_id"] = in.MessageID.String()
	}
	if in.Channel != nil {
		d.Channels = []model.Channel{*in.Channel}
	}

	mode := model.DigestModeMemberEmail
	switch in.SenderType {
	case model.SenderTypeVisitor:
		d.EventType = model.EventTypeNewVisitorMessage
		d.Audience = model.AudienceAgent
		d.Actor = model.VisitorActor(conv.VisitorID)
	case model.SenderTypeAgent:
		d.EventType = model.EventTypeNewTeamMessage
		d.Audience = model.AudienceVisitor
		if in.SenderID == nil {
			return nil, apperrors.BadRequest("agent message requires sender_id", nil)
		}
		d.Actor = model.UserActor(*in.SenderID)
		mode = model.DigestModeVisitorEmail
	case model.SenderTypeBot:
		d.EventType = model.EventTypeNewTeamMessage
		d.Audience = model.AudienceVisitor
		d.Actor = model.BotActor()
		mode = model.DigestModeVisitorEmail
	default:
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown sender type: %q", in.SenderType), nil)
	}
	if in.Mode != nil {
		mode = *in.Mode
	}

	result, err := s.RouteEvent(ctx, d)
	if err != nil {
		return nil, err
	}

	if err := s.armDigest(ctx, conv.ID, result.EventID, mode, in.MessageID, sentAt); err != nil {
		return nil, err
	}
	return result, nil
}

// armDigest schedules the delayed digest invocation, but only for the first
// relevant message of a window: later messages in the same window are picked
// up by the pending invocation's reschedule chain.
func (s *Service) armDigest(ctx context.Context, conversationID, eventID uuid.UUID, mode model.DigestMode, messageID *uuid.UUID, sentAt time.Time) error {
	messages, err := s.convs.ListRecentMessages(ctx, conversationID, s.cfg.MessageLookback)
	if err != nil {
		return fmt.Errorf("failed to inspect conversation for digest: %w", err)
	}

	for _, m := range messages {
		if messageID != nil && m.ID == *messageID {
			continue
		}
		if !digestRelevant(m, mode) || !m.SentAt.Before(sentAt) {
			continue
		}
		if sentAt.Sub(m.SentAt) <= s.cfg.EmailDebounce {
			// An earlier message of this window already armed the digest.
			return nil
		}
		break
	}

	payload := model.EmailDigestPayload{
		ConversationID:   conversationID,
		EventID:          eventID,
		Mode:             mode,
		TriggerMessageID: messageID,
	}
	if messageID == nil {
		payload.TriggerSentAt = &sentAt
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal digest payload: %w", err)
	}

	job := &model.ScheduledJob{
		Kind:    model.JobKindEmailDigest,
		Payload: raw,
		RunAt:   sentAt.Add(s.cfg.EmailDebounce),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to schedule digest job: %w", err)
	}
	return nil
}

func (s *Service) schedulePushDispatch(ctx context.Context, event *model.NotificationEvent, batch []model.PushAttempt) error {
	raw, err := json.Marshal(model.PushDispatchPayload{
		EventID: event.ID,
		Title:   event.Title,
		Body:    event.BodyPreview,
		Data:    event.Data,
		Batch:   batch,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push dispatch payload: %w", err)
	}

	job := &model.ScheduledJob{
		Kind:    model.JobKindPushDispatch,
		Payload: raw,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to schedule push dispatch: %w", err)
	}
	return nil
}

// suppressionReason decides whether a candidate/channel pair is suppressed
// before any delivery is attempted, and why. Empty means deliverable.
func suppressionReason(c resolver.Candidate, axis model.PreferenceAxis, ch model.Channel) string {
	switch {
	case c.OutOfWorkspace:
		return model.ReasonOutOfWorkspace
	case c.IsActor:
		return model.ReasonSenderExcluded
	case !c.Preference.AllowsChannel(axis, ch):
		return model.ReasonPreferenceMuted
	case ch == model.ChannelPush && len(c.Tokens) == 0:
		return model.ReasonMissingPushToken
	}
	return ""
}

// publishInApp pushes the event envelope to the recipient's live channel and
// returns the outcome row. Broker failures are terminal for the attempt and
// never bubble up.
func (s *Service) publishInApp(ctx context.Context, event *model.NotificationEvent, dk string, c resolver.Candidate, ch model.Channel) *model.DeliveryAttempt {
	topic := fmt.Sprintf("notify:agent:%s", c.ID)
	if ch == model.ChannelWidget {
		topic = fmt.Sprintf("notify:visitor:%s", c.ID)
	}

	attempt := &model.DeliveryAttempt{
		DedupeKey:     dk,
		EventID:       event.ID,
		Channel:       ch,
		RecipientType: c.RecipientType,
		RecipientID:   c.ID,
		Status:        model.AttemptStatusDelivered,
		CreatedAt:     time.Now(),
	}

	if err := s.broker.Publish(ctx, topic, event); err != nil {
		attempt.Status = model.AttemptStatusFailed
		msg := err.Error()
		attempt.Error = &msg
		s.logger.Error(err, "in-app publish failed", "dedupe_key", dk)
	}
	return attempt
}

func (s *Service) suppressedAttempt(eventID uuid.UUID, dk string, c resolver.Candidate, ch model.Channel, reason string) *model.DeliveryAttempt {
	return &model.DeliveryAttempt{
		DedupeKey:     dk,
		EventID:       eventID,
		Channel:       ch,
		RecipientType: c.RecipientType,
		RecipientID:   c.ID,
		TokenCount:    len(c.Tokens),
		Status:        model.AttemptStatusSuppressed,
		Reason:        &reason,
		CreatedAt:     time.Now(),
	}
}

// recordSuppressed logs a suppression that needs no dedupe claim of its own,
// which today is only the duplicate-key loser path.
func (s *Service) recordSuppressed(ctx context.Context, eventID uuid.UUID, dk string, c resolver.Candidate, ch model.Channel, reason string) {
	attempt := s.suppressedAttempt(eventID, dk, c, ch, reason)
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Error(err, "failed to record suppressed attempt", "dedupe_key", dk)
		return
	}
	s.metrics.AttemptsCreated.WithLabelValues(string(ch), string(model.AttemptStatusSuppressed)).Inc()
	s.metrics.AttemptsSuppressed.WithLabelValues(reason).Inc()
}

func (s *Service) validate(d *Descriptor) error {
	if !d.Domain.Valid() {
		return apperrors.BadRequest(fmt.Sprintf("invalid event domain: %q", d.Domain), nil)
	}
	if !d.Audience.Valid() {
		return apperrors.BadRequest(fmt.Sprintf("invalid audience: %q", d.Audience), nil)
	}
	if d.EventType == "" {
		return apperrors.BadRequest("event type is required", nil)
	}
	if d.WorkspaceID == uuid.Nil {
		return apperrors.BadRequest("workspace ID is required", nil)
	}
	if err := d.Actor.Validate(); err != nil {
		return apperrors.BadRequest(err.Error(), err)
	}
	return nil
}

// loadEntity verifies the referenced entity exists and derives the
// conversation/ticket visitor for audience resolution. A missing entity
// aborts the route before any attempts are created.
func (s *Service) loadEntity(ctx context.Context, d *Descriptor) (*uuid.UUID, error) {
	switch {
	case d.Entity.ConversationID != nil:
		conv, err := s.convs.Get(ctx, *d.Entity.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		if conv.WorkspaceID != d.WorkspaceID {
			return nil, apperrors.BadRequest(
				fmt.Sprintf("conversation %s does not belong to workspace %s", conv.ID, d.WorkspaceID), nil)
		}
		return &conv.VisitorID, nil
	case d.Entity.TicketID != nil:
		ticket, err := s.tickets.Get(ctx, *d.Entity.TicketID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ticket: %w", err)
		}
		if ticket.WorkspaceID != d.WorkspaceID {
			return nil, apperrors.BadRequest(
				fmt.Sprintf("ticket %s does not belong to workspace %s", ticket.ID, d.WorkspaceID), nil)
		}
		return &ticket.VisitorID, nil
	}
	// Outbound and campaign entities live outside this subsystem; their ids
	// pass through unvalidated.
	return nil, nil
}

func digestRelevant(m *model.Message, mode model.DigestMode) bool {
	if mode == model.DigestModeMemberEmail {
		return m.FromVisitor()
	}
	return m.FromTeam()
}

func messageTitle(conv *model.Conversation, sender model.SenderType) string {
	subject := conv.Subject
	if subject == "" {
		subject = "your conversation"
	}
	if sender == model.SenderTypeVisitor {
		return fmt.Sprintf("New message in %s", subject)
	}
	return fmt.Sprintf("New reply in %s", subject)
}
