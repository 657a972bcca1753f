package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventDomain string

const (
	DomainChat     EventDomain = "chat"
	DomainTicket   EventDomain = "ticket"
	DomainOutbound EventDomain = "outbound"
	DomainCampaign EventDomain = "campaign"
)

func (d EventDomain) Valid() bool {
	switch d {
	case DomainChat, DomainTicket, DomainOutbound, DomainCampaign:
		return true
	}
	return false
}

type Audience string

const (
	AudienceAgent   Audience = "agent"
	AudienceVisitor Audience = "visitor"
	AudienceBoth    Audience = "both"
)

func (a Audience) Valid() bool {
	switch a {
	case AudienceAgent, AudienceVisitor, AudienceBoth:
		return true
	}
	return false
}

// IncludesAgents reports whether agent recipients are in scope.
func (a Audience) IncludesAgents() bool {
	return a == AudienceAgent || a == AudienceBoth
}

// IncludesVisitors reports whether visitor recipients are in scope.
func (a Audience) IncludesVisitors() bool {
	return a == AudienceVisitor || a == AudienceBoth
}

type Channel string

const (
	ChannelPush   Channel = "push"
	ChannelEmail  Channel = "email"
	ChannelWeb    Channel = "web"
	ChannelWidget Channel = "widget"
)

type RecipientType string

const (
	RecipientTypeAgent   RecipientType = "agent"
	RecipientTypeVisitor RecipientType = "visitor"
)

type AttemptStatus string

const (
	AttemptStatusDelivered  AttemptStatus = "delivered"
	AttemptStatusSuppressed AttemptStatus = "suppressed"
	AttemptStatusFailed     AttemptStatus = "failed"
)

// Suppression / annotation reasons recorded on delivery attempts.
const (
	ReasonSenderExcluded   = "sender_excluded"
	ReasonOutOfWorkspace   = "recipient_out_of_workspace"
	ReasonDuplicate        = "duplicate_event_recipient_channel"
	ReasonPreferenceMuted  = "preference_muted"
	ReasonMissingPushToken = "missing_push_token"
	ReasonPartialDelivery  = "partial_delivery"
)

// MaxBodyPreviewLen bounds the preview stored on the event.
const MaxBodyPreviewLen = 280

// TruncatePreview clips s to MaxBodyPreviewLen runes.
func TruncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxBodyPreviewLen {
		return s
	}
	return string(runes[:MaxBodyPreviewLen])
}

// NotificationEvent is the immutable record of one notification-worthy
// occurrence. It is written once by the router and never updated.
type NotificationEvent struct {
	ID          uuid.UUID              `json:"id" db:"id"`
	WorkspaceID uuid.UUID              `json:"workspace_id" db:"workspace_id"`
	EventKey    string                 `json:"event_key" db:"event_key"`
	EventType   string                 `json:"event_type" db:"event_type"`
	Domain      EventDomain            `json:"domain" db:"domain"`
	Audience    Audience               `json:"audience" db:"audience"`
	Actor       Actor                  `json:"actor" db:"-"`
	Entity      EntityRef              `json:"entity" db:"-"`
	Title       string                 `json:"title" db:"title"`
	BodyPreview string                 `json:"body_preview" db:"body_preview"`
	Data        map[string]interface{} `json:"data,omitempty" db:"-"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}

// EntityRef points the event at the domain entity it concerns. At most one
// field is set, matching the event's domain.
type EntityRef struct {
	ConversationID    *uuid.UUID `json:"conversation_id,omitempty" db:"conversation_id"`
	TicketID          *uuid.UUID `json:"ticket_id,omitempty" db:"ticket_id"`
	OutboundMessageID *uuid.UUID `json:"outbound_message_id,omitempty" db:"outbound_message_id"`
	CampaignID        *uuid.UUID `json:"campaign_id,omitempty" db:"campaign_id"`
}

// ID returns whichever entity id is set, or uuid.Nil.
func (e EntityRef) ID() uuid.UUID {
	switch {
	case e.ConversationID != nil:
		return *e.ConversationID
	case e.TicketID != nil:
		return *e.TicketID
	case e.OutboundMessageID != nil:
		return *e.OutboundMessageID
	case e.CampaignID != nil:
		return *e.CampaignID
	}
	return uuid.Nil
}

// DedupeKey builds the per-(event, recipient, channel) idempotency key.
func DedupeKey(eventKey string, rt RecipientType, recipientID uuid.UUID, ch Channel) string {
	return fmt.Sprintf("%s:%s:%s:%s", eventKey, rt, recipientID, ch)
}

// DedupeKeyRecord is the append-only idempotency marker. Its existence is the
// at-most-once guarantee for a recipient/channel pair of one event.
type DedupeKeyRecord struct {
	DedupeKey string    `json:"dedupe_key" db:"dedupe_key"`
	EventID   uuid.UUID `json:"event_id" db:"event_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DeliveryAttempt is one outcome-log row per candidate recipient/channel.
// Status is write-once; rows are never updated after insert.
type DeliveryAttempt struct {
	DedupeKey     string        `json:"dedupe_key" db:"dedupe_key"`
	EventID       uuid.UUID     `json:"event_id" db:"event_id"`
	Channel       Channel       `json:"channel" db:"channel"`
	RecipientType RecipientType `json:"recipient_type" db:"recipient_type"`
	RecipientID   uuid.UUID     `json:"recipient_id" db:"recipient_id"`
	TokenCount    int           `json:"token_count" db:"token_count"`
	Status        AttemptStatus `json:"status" db:"status"`
	Reason        *string       `json:"reason,omitempty" db:"reason"`
	Error         *string       `json:"error,omitempty" db:"error"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// PushAttempt is the transient unit of work handed to the push dispatcher.
// Tokens are resolved at attempt-creation time and travel with the job.
type PushAttempt struct {
	DedupeKey     string        `json:"dedupe_key"`
	RecipientType RecipientType `json:"recipient_type"`
	RecipientID   uuid.UUID     `json:"recipient_id"`
	Tokens        []string      `json:"tokens"`
}

// RouteResult is what RouteEvent reports back to the caller.
type RouteResult struct {
	EventID    uuid.UUID `json:"event_id"`
	EventKey   string    `json:"event_key"`
	Scheduled  int       `json:"scheduled"`
	Suppressed int       `json:"suppressed"`
}
