package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/helpdesk-api/internal/config"
	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/service/resolver"
	apperrors "github.com/jwalitptl/helpdesk-api/pkg/errors"
	"github.com/jwalitptl/helpdesk-api/pkg/logger"
	"github.com/jwalitptl/helpdesk-api/pkg/metrics"
)

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*model.NotificationEvent
}

func (f *fakeEventRepo) Create(_ context.Context, event *model.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventRepo) Get(_ context.Context, id uuid.UUID) (*model.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, assert.AnError
}

type fakeDedupeRepo struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	attempts *fakeAttemptRepo
}

func newFakeDedupeRepo(attempts *fakeAttemptRepo) *fakeDedupeRepo {
	return &fakeDedupeRepo{seen: map[string]struct{}{}, attempts: attempts}
}

func (f *fakeDedupeRepo) Claim(ctx context.Context, record *model.DedupeKeyRecord, outcome func() *model.DeliveryAttempt) (bool, error) {
	f.mu.Lock()
	if _, ok := f.seen[record.DedupeKey]; ok {
		f.mu.Unlock()
		return false, nil
	}
	f.seen[record.DedupeKey] = struct{}{}
	f.mu.Unlock()

	if outcome == nil {
		return true, nil
	}
	attempt := outcome()
	if attempt == nil {
		return true, nil
	}
	if err := f.attempts.Create(ctx, attempt); err != nil {
		// A failed outcome write rolls the key back with it.
		f.mu.Lock()
		delete(f.seen, record.DedupeKey)
		f.mu.Unlock()
		return false, err
	}
	return true, nil
}

type fakeAttemptRepo struct {
	mu        sync.Mutex
	attempts  []*model.DeliveryAttempt
	createErr error
}

func (f *fakeAttemptRepo) Create(_ context.Context, attempt *model.DeliveryAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeAttemptRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*model.DeliveryAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.DeliveryAttempt
	for _, a := range f.attempts {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) byStatus(status model.AttemptStatus) []*model.DeliveryAttempt {
	var out []*model.DeliveryAttempt
	for _, a := range f.attempts {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeAttemptRepo) withReason(reason string) []*model.DeliveryAttempt {
	var out []*model.DeliveryAttempt
	for _, a := range f.attempts {
		if a.Reason != nil && *a.Reason == reason {
			out = append(out, a)
		}
	}
	return out
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs []*model.ScheduledJob
}

func (f *fakeJobRepo) Create(_ context.Context, job *model.ScheduledJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeJobRepo) ClaimDue(_ context.Context, limit int) ([]*model.ScheduledJob, error) {
	return nil, nil
}

func (f *fakeJobRepo) MarkProcessed(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeJobRepo) MarkFailed(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func (f *fakeJobRepo) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeJobRepo) ofKind(kind model.JobKind) []*model.ScheduledJob {
	var out []*model.ScheduledJob
	for _, j := range f.jobs {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}

type fakeConvRepo struct {
	convs    map[uuid.UUID]*model.Conversation
	messages map[uuid.UUID][]*model.Message
}

func (f *fakeConvRepo) Get(_ context.Context, id uuid.UUID) (*model.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, assert.AnError
	}
	return c, nil
}

func (f *fakeConvRepo) ListRecentMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]*model.Message, error) {
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

type fakeTicketRepo struct {
	tickets map[uuid.UUID]*model.Ticket
}

func (f *fakeTicketRepo) Get(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, assert.AnError
	}
	return t, nil
}

type fakeDirectory struct {
	members  map[uuid.UUID][]*model.WorkspaceMember
	users    map[uuid.UUID]*model.User
	visitors map[uuid.UUID]*model.Visitor
}

func (f *fakeDirectory) ListWorkspaceMembers(_ context.Context, workspaceID uuid.UUID) ([]*model.WorkspaceMember, error) {
	return f.members[workspaceID], nil
}

func (f *fakeDirectory) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, assert.AnError
	}
	return u, nil
}

func (f *fakeDirectory) GetVisitor(_ context.Context, id uuid.UUID) (*model.Visitor, error) {
	v, ok := f.visitors[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("visitor %s", id), nil)
	}
	return v, nil
}

type fakePrefs struct {
	defaults  model.NotificationPreference
	overrides map[uuid.UUID]*model.PreferenceOverride
}

func (f *fakePrefs) GetWorkspaceDefaults(_ context.Context, _ uuid.UUID) (*model.NotificationPreference, error) {
	d := f.defaults
	return &d, nil
}

func (f *fakePrefs) GetOverride(_ context.Context, userID, _ uuid.UUID) (*model.PreferenceOverride, error) {
	return f.overrides[userID], nil
}

type fakeTokens struct {
	agent   map[uuid.UUID][]*model.PushToken
	visitor map[uuid.UUID][]*model.PushToken
}

func (f *fakeTokens) ListPushTokens(_ context.Context, userID uuid.UUID) ([]*model.PushToken, error) {
	return f.agent[userID], nil
}

func (f *fakeTokens) ListVisitorPushTokens(_ context.Context, visitorID uuid.UUID) ([]*model.PushToken, error) {
	return f.visitor[visitorID], nil
}

type fakeBroker struct {
	mu        sync.Mutex
	published []string
	fail      bool
}

func (f *fakeBroker) Publish(_ context.Context, topic string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return assert.AnError
	}
	f.published = append(f.published, topic)
	return nil
}

func (f *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBroker) Close() error { return nil }

type env struct {
	workspaceID uuid.UUID
	agentA      uuid.UUID
	agentB      uuid.UUID
	visitorID   uuid.UUID
	convID      uuid.UUID

	events   *fakeEventRepo
	dedupe   *fakeDedupeRepo
	attempts *fakeAttemptRepo
	jobs     *fakeJobRepo
	convs    *fakeConvRepo
	tickets  *fakeTicketRepo
	tokens   *fakeTokens
	broker   *fakeBroker
	svc      *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		workspaceID: uuid.New(),
		agentA:      uuid.New(),
		agentB:      uuid.New(),
		visitorID:   uuid.New(),
		convID:      uuid.New(),
		events:      &fakeEventRepo{},
		attempts:    &fakeAttemptRepo{},
		jobs:        &fakeJobRepo{},
		broker:      &fakeBroker{},
	}
	e.dedupe = newFakeDedupeRepo(e.attempts)

	e.convs = &fakeConvRepo{
		convs: map[uuid.UUID]*model.Conversation{
			e.convID: {
				ID:          e.convID,
				WorkspaceID: e.workspaceID,
				VisitorID:   e.visitorID,
				Subject:     "Billing question",
			},
		},
		messages: map[uuid.UUID][]*model.Message{},
	}
	e.tickets = &fakeTicketRepo{tickets: map[uuid.UUID]*model.Ticket{}}

	directory := &fakeDirectory{
		members: map[uuid.UUID][]*model.WorkspaceMember{
			e.workspaceID: {
				{WorkspaceID: e.workspaceID, UserID: e.agentA},
				{WorkspaceID: e.workspaceID, UserID: e.agentB},
			},
		},
		users: map[uuid.UUID]*model.User{
			e.agentA: {ID: e.agentA, Email: "a@example.com"},
			e.agentB: {ID: e.agentB, Email: "b@example.com"},
		},
		visitors: map[uuid.UUID]*model.Visitor{
			e.visitorID: {ID: e.visitorID, WorkspaceID: e.workspaceID, Email: "v@example.com"},
		},
	}
	prefs := &fakePrefs{
		defaults:  model.DefaultNotificationPreference(),
		overrides: map[uuid.UUID]*model.PreferenceOverride{},
	}
	e.tokens = &fakeTokens{
		agent: map[uuid.UUID][]*model.PushToken{
			e.agentA: {{Token: "tok-a", OwnerID: e.agentA}},
			e.agentB: {{Token: "tok-b", OwnerID: e.agentB}},
		},
		visitor: map[uuid.UUID][]*model.PushToken{},
	}

	resolverSvc := resolver.NewService(directory, prefs, e.tokens)
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	e.svc = NewService(
		e.events,
		e.dedupe,
		e.attempts,
		e.jobs,
		e.convs,
		e.tickets,
		resolverSvc,
		e.broker,
		config.DefaultNotifierConfig(),
		log,
		metrics.NewUnregistered("test"),
	)
	return e
}

func (e *env) visitorMessageDescriptor() Descriptor {
	return Descriptor{
		EventType:   model.EventTypeNewVisitorMessage,
		Domain:      model.DomainChat,
		Audience:    model.AudienceAgent,
		WorkspaceID: e.workspaceID,
		Actor:       model.VisitorActor(e.visitorID),
		Entity:      model.EntityRef{ConversationID: &e.convID},
		Title:       "New message",
		Body:        "hello",
	}
}

func TestRouteEventFansOutAgents(t *testing.T) {
	e := newEnv(t)

	result, err := e.svc.RouteEvent(context.Background(), e.visitorMessageDescriptor())
	require.NoError(t, err)

	// Two agents, push + web each.
	assert.Equal(t, 4, result.Scheduled)
	assert.Equal(t, 0, result.Suppressed)

	pushJobs := e.jobs.ofKind(model.JobKindPushDispatch)
	require.Len(t, pushJobs, 1, "the push fan-out is a single batched job")

	var payload model.PushDispatchPayload
	require.NoError(t, json.Unmarshal(pushJobs[0].Payload, &payload))
	assert.Len(t, payload.Batch, 2)
	assert.Equal(t, result.EventID, payload.EventID)

	// Web attempts recorded inline.
	delivered := e.attempts.byStatus(model.AttemptStatusDelivered)
	require.Len(t, delivered, 2)
	for _, a := range delivered {
		assert.Equal(t, model.ChannelWeb, a.Channel)
	}
	assert.Len(t, e.broker.published, 2)
}

func TestRouteEventDedupeKeysAreDistinct(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.RouteEvent(context.Background(), e.visitorMessageDescriptor())
	require.NoError(t, err)

	// 2 agents x 2 channels, every key registered exactly once.
	assert.Len(t, e.dedupe.seen, 4)
}

func TestRouteEventDuplicateSuppressesEverything(t *testing.T) {
	e := newEnv(t)

	d := e.visitorMessageDescriptor()
	d.EventKey = "chat.new_visitor_message:fixed-key"

	first, err := e.svc.RouteEvent(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Scheduled)

	second, err := e.svc.RouteEvent(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Scheduled)
	assert.Equal(t, 4, second.Suppressed)

	dupes := e.attempts.withReason(model.ReasonDuplicate)
	assert.Len(t, dupes, 4)
	assert.Len(t, e.jobs.ofKind(model.JobKindPushDispatch), 1, "no second push job")
}

func TestRouteEventConcurrentDuplicate(t *testing.T) {
	e := newEnv(t)

	d := e.visitorMessageDescriptor()
	d.EventKey = "chat.new_visitor_message:race-key"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.RouteEvent(context.Background(), d)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 2 agents x 2 channels: each key claimed exactly once across both calls.
	assert.Len(t, e.dedupe.seen, 4)
	assert.Len(t, e.attempts.withReason(model.ReasonDuplicate), 4)

	delivered := e.attempts.byStatus(model.AttemptStatusDelivered)
	require.Len(t, delivered, 2, "each web key delivers exactly once")
	assert.Len(t, e.broker.published, 2)

	batched := 0
	for _, j := range e.jobs.ofKind(model.JobKindPushDispatch) {
		var payload model.PushDispatchPayload
		require.NoError(t, json.Unmarshal(j.Payload, &payload))
		batched += len(payload.Batch)
	}
	assert.Equal(t, 2, batched, "each push key is batched exactly once")
}

func TestRouteEventAttemptWriteFailureReleasesKey(t *testing.T) {
	e := newEnv(t)
	e.attempts.createErr = assert.AnError

	d := e.visitorMessageDescriptor()
	d.EventKey = "chat.new_visitor_message:retry-key"

	_, err := e.svc.RouteEvent(context.Background(), d)
	require.Error(t, err)
	assert.Empty(t, e.attempts.attempts)

	// The failed recipient's key must not survive without its outcome row;
	// a retry of the same event still reaches everyone.
	e.attempts.createErr = nil
	result, err := e.svc.RouteEvent(context.Background(), d)
	require.NoError(t, err)
	assert.Len(t, e.attempts.byStatus(model.AttemptStatusDelivered), 2)
	assert.Equal(t, 4, result.Scheduled+result.Suppressed)
}

func TestRouteEventExcludesSender(t *testing.T) {
	e := newEnv(t)

	d := e.visitorMessageDescriptor()
	d.Actor = model.UserActor(e.agentA)
	d.EventType = model.EventTypeConversationAssigned

	result, err := e.svc.RouteEvent(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scheduled)
	assert.Equal(t, 2, result.Suppressed)

	for _, a := range e.attempts.withReason(model.ReasonSenderExcluded) {
		assert.Equal(t, e.agentA, a.RecipientID)
		assert.Equal(t, model.AttemptStatusSuppressed, a.Status)
	}
}

func TestRouteEventPreferenceMuted(t *testing.T) {
	e := newEnv(t)
	// Disable visitor-message push for agent B via override.
	off := false
	e.svc.resolver = resolver.NewService(
		&fakeDirectory{
			members: map[uuid.UUID][]*model.WorkspaceMember{
				e.workspaceID: {{WorkspaceID: e.workspaceID, UserID: e.agentB}},
			},
			users: map[uuid.UUID]*model.User{e.agentB: {ID: e.agentB, Email: "b@example.com"}},
		},
		&fakePrefs{
			defaults: model.DefaultNotificationPreference(),
			overrides: map[uuid.UUID]*model.PreferenceOverride{
				e.agentB: {UserID: e.agentB, NewVisitorMessagePush: &off},
			},
		},
		e.tokens,
	)

	result, err := e.svc.RouteEvent(context.Background(), e.visitorMessageDescriptor())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scheduled)
	assert.Equal(t, 2, result.Suppressed)
	assert.Len(t, e.attempts.withReason(model.ReasonPreferenceMuted), 2)
}

func TestRouteEventMissingTokenSuppressesPushOnly(t *testing.T) {
	e := newEnv(t)
	delete(e.tokens.agent, e.agentA)
	delete(e.tokens.agent, e.agentB)

	result, err := e.svc.RouteEvent(context.Background(), e.visitorMessageDescriptor())
	require.NoError(t, err)

	// Web still goes out; only push is suppressed.
	assert.Equal(t, 2, result.Scheduled)
	assert.Equal(t, 2, result.Suppressed)

	missing := e.attempts.withReason(model.ReasonMissingPushToken)
	require.Len(t, missing, 2)
	for _, a := range missing {
		assert.Equal(t, model.ChannelPush, a.Channel)
	}
	assert.Empty(t, e.jobs.ofKind(model.JobKindPushDispatch))
}

func TestRouteEventMissingEntityAborts(t *testing.T) {
	e := newEnv(t)

	d := e.visitorMessageDescriptor()
	missing := uuid.New()
	d.Entity = model.EntityRef{ConversationID: &missing}

	_, err := e.svc.RouteEvent(context.Background(), d)
	require.Error(t, err)
	assert.Empty(t, e.events.events, "no event row for a missing entity")
	assert.Empty(t, e.attempts.attempts)
}

func TestRouteEventWorkspaceMismatchAborts(t *testing.T) {
	e := newEnv(t)

	d := e.visitorMessageDescriptor()
	d.WorkspaceID = uuid.New()

	_, err := e.svc.RouteEvent(context.Background(), d)
	require.Error(t, err)
	assert.Empty(t, e.events.events)
}

func TestRouteEventDefaultEventKey(t *testing.T) {
	e := newEnv(t)

	result, err := e.svc.RouteEvent(context.Background(), e.visitorMessageDescriptor())
	require.NoError(t, err)
	assert.Contains(t, result.EventKey, model.EventTypeNewVisitorMessage)
	assert.Contains(t, result.EventKey, e.convID.String())
	assert.Contains(t, result.EventKey, e.visitorID.String())
}

func TestRouteEventBrokerFailureIsTerminal(t *testing.T) {
	e := newEnv(t)
	e.broker.fail = true

	_, err := e.svc.RouteEvent(context.Background(), e.visitorMessageDescriptor())
	require.NoError(t, err, "broker failures never abort routing")

	failed := e.attempts.byStatus(model.AttemptStatusFailed)
	require.Len(t, failed, 2)
	for _, a := range failed {
		assert.Equal(t, model.ChannelWeb, a.Channel)
		require.NotNil(t, a.Error)
	}
}

func TestNotifyNewMessageArmsDigest(t *testing.T) {
	e := newEnv(t)
	msgID := uuid.New()
	sentAt := time.Now()

	result, err := e.svc.NotifyNewMessage(context.Background(), NewMessageInput{
		ConversationID: e.convID,
		Content:        "hi there",
		SenderType:     model.SenderTypeVisitor,
		MessageID:      &msgID,
		SentAt:         &sentAt,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Scheduled)

	digests := e.jobs.ofKind(model.JobKindEmailDigest)
	require.Len(t, digests, 1)

	var payload model.EmailDigestPayload
	require.NoError(t, json.Unmarshal(digests[0].Payload, &payload))
	assert.Equal(t, e.convID, payload.ConversationID)
	assert.Equal(t, result.EventID, payload.EventID)
	assert.Equal(t, model.DigestModeMemberEmail, payload.Mode)
	require.NotNil(t, payload.TriggerMessageID)
	assert.Equal(t, msgID, *payload.TriggerMessageID)
	assert.WithinDuration(t, sentAt.Add(e.svc.cfg.EmailDebounce), digests[0].RunAt, time.Second)
}

func TestNotifyNewMessageSecondInWindowDoesNotRearm(t *testing.T) {
	e := newEnv(t)

	base := time.Now()
	first := &model.Message{
		ID:             uuid.New(),
		ConversationID: e.convID,
		SenderType:     model.SenderTypeVisitor,
		SentAt:         base,
	}
	secondID := uuid.New()
	second := &model.Message{
		ID:             secondID,
		ConversationID: e.convID,
		SenderType:     model.SenderTypeVisitor,
		SentAt:         base.Add(10 * time.Second),
	}
	// Newest first, as the repository returns them.
	e.convs.messages[e.convID] = []*model.Message{second, first}

	sentAt := second.SentAt
	_, err := e.svc.NotifyNewMessage(context.Background(), NewMessageInput{
		ConversationID: e.convID,
		Content:        "follow-up",
		SenderType:     model.SenderTypeVisitor,
		MessageID:      &secondID,
		SentAt:         &sentAt,
	})
	require.NoError(t, err)

	assert.Empty(t, e.jobs.ofKind(model.JobKindEmailDigest),
		"a message inside an armed window leaves scheduling to the pending invocation")
}

func TestNotifyNewMessageChannelRestriction(t *testing.T) {
	e := newEnv(t)
	sentAt := time.Now()
	ch := model.ChannelWeb

	result, err := e.svc.NotifyNewMessage(context.Background(), NewMessageInput{
		ConversationID: e.convID,
		Content:        "web only",
		SenderType:     model.SenderTypeVisitor,
		SentAt:         &sentAt,
		Channel:        &ch,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scheduled)
	assert.Empty(t, e.jobs.ofKind(model.JobKindPushDispatch),
		"restricting to web must not batch a push job")
	for _, a := range e.attempts.byStatus(model.AttemptStatusDelivered) {
		assert.Equal(t, model.ChannelWeb, a.Channel)
	}
}

func TestNotifyNewMessageAgentReplyTargetsVisitor(t *testing.T) {
	e := newEnv(t)
	sentAt := time.Now()

	result, err := e.svc.NotifyNewMessage(context.Background(), NewMessageInput{
		ConversationID: e.convID,
		Content:        "we are on it",
		SenderType:     model.SenderTypeAgent,
		SenderID:       &e.agentA,
		SentAt:         &sentAt,
	})
	require.NoError(t, err)

	// Visitor has no tokens: push suppressed, widget delivered.
	assert.Equal(t, 1, result.Scheduled)
	assert.Equal(t, 1, result.Suppressed)

	digests := e.jobs.ofKind(model.JobKindEmailDigest)
	require.Len(t, digests, 1)
	var payload model.EmailDigestPayload
	require.NoError(t, json.Unmarshal(digests[0].Payload, &payload))
	assert.Equal(t, model.DigestModeVisitorEmail, payload.Mode)
}

func TestNotifyNewMessageAgentRequiresSender(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.NotifyNewMessage(context.Background(), NewMessageInput{
		ConversationID: e.convID,
		Content:        "anonymous",
		SenderType:     model.SenderTypeAgent,
	})
	require.Error(t, err)
}

func TestTruncatedPreviewOnEvent(t *testing.T) {
	e := newEnv(t)

	d := e.visitorMessageDescriptor()
	long := make([]rune, model.MaxBodyPreviewLen+50)
	for i := range long {
		long[i] = 'x'
	}
	d.Body = string(long)

	_, err := e.svc.RouteEvent(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, e.events.events, 1)
	assert.Len(t, []rune(e.events.events[0].BodyPreview), model.MaxBodyPreviewLen)
}
