package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobKindPushDispatch JobKind = "push_dispatch"
	JobKindEmailDigest  JobKind = "email_digest"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusProcessed  JobStatus = "processed"
	JobStatusFailed     JobStatus = "failed"
)

// ScheduledJob is one deferred unit of work. Jobs become eligible at RunAt
// and are claimed by exactly one worker; a fired job runs to completion and
// is never cancelled.
type ScheduledJob struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Kind         JobKind         `json:"kind" db:"kind"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	Status       JobStatus       `json:"status" db:"status"`
	RunAt        time.Time       `json:"run_at" db:"run_at"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// PushDispatchPayload carries one batched set of push attempts for an event.
type PushDispatchPayload struct {
	EventID uuid.UUID              `json:"event_id"`
	Title   string                 `json:"title"`
	Body    string                 `json:"body"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Batch   []PushAttempt          `json:"batch"`
}

type DigestMode string

const (
	DigestModeMemberEmail  DigestMode = "member_email"
	DigestModeVisitorEmail DigestMode = "visitor_email"
)

// EmailDigestPayload triggers one aggregator invocation. Exactly one of
// TriggerMessageID / TriggerSentAt is expected; the aggregator's staleness
// guard differs between the two. EventID is the notification event that
// armed the window; reschedules carry it forward so digest outcome rows stay
// reachable from the event's attempt listing.
type EmailDigestPayload struct {
	ConversationID   uuid.UUID  `json:"conversation_id"`
	EventID          uuid.UUID  `json:"event_id"`
	Mode             DigestMode `json:"mode"`
	TriggerMessageID *uuid.UUID `json:"trigger_message_id,omitempty"`
	TriggerSentAt    *time.Time `json:"trigger_sent_at,omitempty"`
}
