package model

import (
	"time"

	"github.com/google/uuid"
)

// PreferenceAxis selects which slice of a recipient's notification settings
// governs an event type. Most event types fall under the generic mute flag;
// new visitor messages carry their own per-channel booleans.
type PreferenceAxis string

const (
	AxisGeneric           PreferenceAxis = "generic"
	AxisNewVisitorMessage PreferenceAxis = "new_visitor_message"
)

// NotificationPreference is a fully resolved per-recipient preference set.
type NotificationPreference struct {
	Muted                  bool `json:"muted" db:"muted"`
	NewVisitorMessagePush  bool `json:"new_visitor_message_push" db:"new_visitor_message_push"`
	NewVisitorMessageEmail bool `json:"new_visitor_message_email" db:"new_visitor_message_email"`
}

// AllowsChannel applies the axis to pick the governing boolean.
func (p NotificationPreference) AllowsChannel(axis PreferenceAxis, ch Channel) bool {
	if axis == AxisNewVisitorMessage {
		switch ch {
		case ChannelPush, ChannelWeb, ChannelWidget:
			return p.NewVisitorMessagePush
		case ChannelEmail:
			return p.NewVisitorMessageEmail
		}
	}
	return !p.Muted
}

// PreferenceOverride is a per-member override; nil fields fall through to the
// workspace defaults.
type PreferenceOverride struct {
	UserID                 uuid.UUID `json:"user_id" db:"user_id"`
	WorkspaceID            uuid.UUID `json:"workspace_id" db:"workspace_id"`
	Muted                  *bool     `json:"muted,omitempty" db:"muted"`
	NewVisitorMessagePush  *bool     `json:"new_visitor_message_push,omitempty" db:"new_visitor_message_push"`
	NewVisitorMessageEmail *bool     `json:"new_visitor_message_email,omitempty" db:"new_visitor_message_email"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`
}

// Resolve layers the override on top of workspace defaults.
func (o *PreferenceOverride) Resolve(defaults NotificationPreference) NotificationPreference {
	out := defaults
	if o == nil {
		return out
	}
	if o.Muted != nil {
		out.Muted = *o.Muted
	}
	if o.NewVisitorMessagePush != nil {
		out.NewVisitorMessagePush = *o.NewVisitorMessagePush
	}
	if o.NewVisitorMessageEmail != nil {
		out.NewVisitorMessageEmail = *o.NewVisitorMessageEmail
	}
	return out
}

// DefaultNotificationPreference is used when a workspace has no stored
// defaults row.
func DefaultNotificationPreference() NotificationPreference {
	return NotificationPreference{
		Muted:                  false,
		NewVisitorMessagePush:  true,
		NewVisitorMessageEmail: true,
	}
}

type PushToken struct {
	ID                   uuid.UUID     `json:"id" db:"id"`
	OwnerType            RecipientType `json:"owner_type" db:"owner_type"`
	OwnerID              uuid.UUID     `json:"owner_id" db:"owner_id"`
	Token                string        `json:"token" db:"token"`
	Platform             string        `json:"platform" db:"platform"`
	NotificationsEnabled *bool         `json:"notifications_enabled,omitempty" db:"notifications_enabled"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
}

// Enabled treats an absent flag as enabled; only an explicit false opts the
// device out.
func (t *PushToken) Enabled() bool {
	return t.NotificationsEnabled == nil || *t.NotificationsEnabled
}
