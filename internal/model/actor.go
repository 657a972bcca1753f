package model

import (
	"fmt"

	"github.com/google/uuid"
)

type ActorType string

const (
	ActorTypeSystem  ActorType = "system"
	ActorTypeUser    ActorType = "user"
	ActorTypeVisitor ActorType = "visitor"
	ActorTypeBot     ActorType = "bot"
)

// Actor is the originator of a notification event. It is a tagged variant:
// exactly one of UserID/VisitorID is set, and only for the matching type.
type Actor struct {
	Type      ActorType  `json:"type" db:"actor_type"`
	UserID    *uuid.UUID `json:"user_id,omitempty" db:"actor_user_id"`
	VisitorID *uuid.UUID `json:"visitor_id,omitempty" db:"actor_visitor_id"`
}

func SystemActor() Actor {
	return Actor{Type: ActorTypeSystem}
}

func BotActor() Actor {
	return Actor{Type: ActorTypeBot}
}

func UserActor(id uuid.UUID) Actor {
	return Actor{Type: ActorTypeUser, UserID: &id}
}

func VisitorActor(id uuid.UUID) Actor {
	return Actor{Type: ActorTypeVisitor, VisitorID: &id}
}

// Validate rejects actors whose id fields disagree with the tag.
func (a Actor) Validate() error {
	switch a.Type {
	case ActorTypeSystem, ActorTypeBot:
		if a.UserID != nil || a.VisitorID != nil {
			return fmt.Errorf("%s actor must not carry an id", a.Type)
		}
	case ActorTypeUser:
		if a.UserID == nil || a.VisitorID != nil {
			return fmt.Errorf("user actor requires user_id only")
		}
	case ActorTypeVisitor:
		if a.VisitorID == nil || a.UserID != nil {
			return fmt.Errorf("visitor actor requires visitor_id only")
		}
	default:
		return fmt.Errorf("unknown actor type: %q", a.Type)
	}
	return nil
}

// IsUser reports whether the actor is the given agent user.
func (a Actor) IsUser(id uuid.UUID) bool {
	return a.Type == ActorTypeUser && a.UserID != nil && *a.UserID == id
}

// IsVisitor reports whether the actor is the given visitor.
func (a Actor) IsVisitor(id uuid.UUID) bool {
	return a.Type == ActorTypeVisitor && a.VisitorID != nil && *a.VisitorID == id
}

// KeyPart renders the actor for use inside a default event key.
func (a Actor) KeyPart() string {
	switch a.Type {
	case ActorTypeUser:
		return a.UserID.String()
	case ActorTypeVisitor:
		return a.VisitorID.String()
	default:
		return string(a.Type)
	}
}
