package model

import (
	"time"

	"github.com/google/uuid"
)

type SenderType string

const (
	SenderTypeVisitor SenderType = "visitor"
	SenderTypeAgent   SenderType = "agent"
	SenderTypeBot     SenderType = "bot"
)

type Conversation struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	WorkspaceID uuid.UUID  `json:"workspace_id" db:"workspace_id"`
	VisitorID   uuid.UUID  `json:"visitor_id" db:"visitor_id"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty" db:"assignee_id"`
	Subject     string     `json:"subject" db:"subject"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Message struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ConversationID uuid.UUID  `json:"conversation_id" db:"conversation_id"`
	SenderType     SenderType `json:"sender_type" db:"sender_type"`
	SenderID       *uuid.UUID `json:"sender_id,omitempty" db:"sender_id"`
	Body           string     `json:"body" db:"body"`
	SentAt         time.Time  `json:"sent_at" db:"sent_at"`
}

// FromVisitor reports whether the message was authored by the visitor side.
func (m *Message) FromVisitor() bool {
	return m.SenderType == SenderTypeVisitor
}

// FromTeam reports whether the message was authored by an agent or bot.
func (m *Message) FromTeam() bool {
	return m.SenderType == SenderTypeAgent || m.SenderType == SenderTypeBot
}

type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

type Ticket struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	WorkspaceID    uuid.UUID    `json:"workspace_id" db:"workspace_id"`
	VisitorID      uuid.UUID    `json:"visitor_id" db:"visitor_id"`
	ConversationID *uuid.UUID   `json:"conversation_id,omitempty" db:"conversation_id"`
	AssigneeID     *uuid.UUID   `json:"assignee_id,omitempty" db:"assignee_id"`
	Status         TicketStatus `json:"status" db:"status"`
	Title          string       `json:"title" db:"title"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}
