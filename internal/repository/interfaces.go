package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/model"
)

// All repository interfaces in one file
type (
	// EventRepository stores immutable notification events.
	EventRepository interface {
		Create(ctx context.Context, event *model.NotificationEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.NotificationEvent, error)
	}

	// DedupeRepository is the append-only idempotency registry. Claim must be
	// atomic: exactly one of two racing callers observes claimed=true, and the
	// winner's outcome row (when the callback returns one) commits in the same
	// transaction as the key, so a crash never strands a claimed key without
	// its outcome row. The callback runs only for the winner.
	DedupeRepository interface {
		Claim(ctx context.Context, record *model.DedupeKeyRecord, outcome func() *model.DeliveryAttempt) (claimed bool, err error)
	}

	// AttemptRepository is the delivery outcome log. Rows are write-once.
	AttemptRepository interface {
		Create(ctx context.Context, attempt *model.DeliveryAttempt) error
		ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.DeliveryAttempt, error)
	}

	// JobRepository schedules and claims deferred work.
	JobRepository interface {
		Create(ctx context.Context, job *model.ScheduledJob) error
		ClaimDue(ctx context.Context, limit int) ([]*model.ScheduledJob, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// ConversationRepository reads chat entities.
	ConversationRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
		// ListRecentMessages returns up to limit messages, newest first.
		ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*model.Message, error)
	}

	// TicketRepository reads ticket entities.
	TicketRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	}

	// DirectoryRepository answers workspace membership and identity lookups.
	DirectoryRepository interface {
		ListWorkspaceMembers(ctx context.Context, workspaceID uuid.UUID) ([]*model.WorkspaceMember, error)
		GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetVisitor(ctx context.Context, id uuid.UUID) (*model.Visitor, error)
	}

	// PreferenceRepository reads notification preferences. GetOverride returns
	// (nil, nil) when the member has no override row.
	PreferenceRepository interface {
		GetWorkspaceDefaults(ctx context.Context, workspaceID uuid.UUID) (*model.NotificationPreference, error)
		GetOverride(ctx context.Context, userID, workspaceID uuid.UUID) (*model.PreferenceOverride, error)
	}

	// PushTokenRepository reads device tokens.
	PushTokenRepository interface {
		ListPushTokens(ctx context.Context, userID uuid.UUID) ([]*model.PushToken, error)
		ListVisitorPushTokens(ctx context.Context, visitorID uuid.UUID) ([]*model.PushToken, error)
	}
)
