package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
	apperrors "github.com/jwalitptl/helpdesk-api/pkg/errors"
)

const (
	memberCacheTTL   = 30 * time.Second
	defaultsCacheTTL = time.Minute
)

// Candidate is one recipient considered for an event, with everything the
// router needs to decide per-channel delivery or suppression. Candidates are
// never dropped silently: out-of-workspace recipients and the actor come back
// flagged so the outcome log gets a row for them.
type Candidate struct {
	RecipientType  model.RecipientType
	ID             uuid.UUID
	IsActor        bool
	OutOfWorkspace bool
	Preference     model.NotificationPreference
	Tokens         []string
	Email          string
}

// Input describes the recipient-resolution half of an event descriptor.
type Input struct {
	WorkspaceID uuid.UUID
	Audience    model.Audience
	Actor       model.Actor
	Axis        model.PreferenceAxis

	// Explicit recipient lists; when empty, agents default to all workspace
	// members and visitors to DerivedVisitorID.
	AgentIDs   []uuid.UUID
	VisitorIDs []uuid.UUID

	// DerivedVisitorID is the entity's visitor, resolved by the router.
	DerivedVisitorID *uuid.UUID

	Excludes []uuid.UUID
}

type Service struct {
	directory repository.DirectoryRepository
	prefs     repository.PreferenceRepository
	tokens    repository.PushTokenRepository

	memberCache   *cache.Cache
	defaultsCache *cache.Cache
}

func NewService(
	directory repository.DirectoryRepository,
	prefs repository.PreferenceRepository,
	tokens repository.PushTokenRepository,
) *Service {
	return &Service{
		directory:     directory,
		prefs:         prefs,
		tokens:        tokens,
		memberCache:   cache.New(memberCacheTTL, 5*time.Minute),
		defaultsCache: cache.New(defaultsCacheTTL, 5*time.Minute),
	}
}

// Resolve produces the candidate set for an event.
func (s *Service) Resolve(ctx context.Context, in Input) ([]Candidate, error) {
	excluded := make(map[uuid.UUID]struct{}, len(in.Excludes))
	for _, id := range in.Excludes {
		excluded[id] = struct{}{}
	}

	var candidates []Candidate

	if in.Audience.IncludesAgents() {
		agents, err := s.resolveAgents(ctx, in, excluded)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, agents...)
	}

	if in.Audience.IncludesVisitors() {
		visitors, err := s.resolveVisitors(ctx, in, excluded)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, visitors...)
	}

	return candidates, nil
}

func (s *Service) resolveAgents(ctx context.Context, in Input, excluded map[uuid.UUID]struct{}) ([]Candidate, error) {
	members, err := s.workspaceMembers(ctx, in.WorkspaceID)
	if err != nil {
		return nil, err
	}
	membership := make(map[uuid.UUID]struct{}, len(members))
	for _, m := range members {
		membership[m.UserID] = struct{}{}
	}

	ids := in.AgentIDs
	if len(ids) == 0 {
		ids = make([]uuid.UUID, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
	}

	defaults, err := s.workspaceDefaults(ctx, in.WorkspaceID)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if _, skip := excluded[id]; skip {
			continue
		}

		c := Candidate{
			RecipientType: model.RecipientTypeAgent,
			ID:            id,
			IsActor:       in.Actor.IsUser(id),
		}

		if _, ok := membership[id]; !ok {
			c.OutOfWorkspace = true
			candidates = append(candidates, c)
			continue
		}

		override, err := s.prefs.GetOverride(ctx, id, in.WorkspaceID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve preference for %s: %w", id, err)
		}
		c.Preference = override.Resolve(defaults)

		tokens, err := s.tokens.ListPushTokens(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list push tokens for %s: %w", id, err)
		}
		c.Tokens = enabledTokens(tokens)

		if user, err := s.directory.GetUser(ctx, id); err == nil {
			c.Email = user.Email
		}

		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *Service) resolveVisitors(ctx context.Context, in Input, excluded map[uuid.UUID]struct{}) ([]Candidate, error) {
	ids := in.VisitorIDs
	if len(ids) == 0 && in.DerivedVisitorID != nil {
		ids = []uuid.UUID{*in.DerivedVisitorID}
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if _, skip := excluded[id]; skip {
			continue
		}

		c := Candidate{
			RecipientType: model.RecipientTypeVisitor,
			ID:            id,
			IsActor:       in.Actor.IsVisitor(id),
			// Visitors carry no preference axes; channel gating happens on
			// token presence and the widget session alone.
			Preference: model.DefaultNotificationPreference(),
		}

		visitor, err := s.directory.GetVisitor(ctx, id)
		switch {
		case apperrors.IsNotFound(err):
			c.OutOfWorkspace = true
			candidates = append(candidates, c)
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to load visitor %s: %w", id, err)
		case visitor.WorkspaceID != in.WorkspaceID:
			c.OutOfWorkspace = true
			candidates = append(candidates, c)
			continue
		}
		c.Email = visitor.Email

		tokens, err := s.tokens.ListVisitorPushTokens(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list visitor push tokens for %s: %w", id, err)
		}
		c.Tokens = enabledTokens(tokens)

		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *Service) workspaceMembers(ctx context.Context, workspaceID uuid.UUID) ([]*model.WorkspaceMember, error) {
	key := workspaceID.String()
	if v, ok := s.memberCache.Get(key); ok {
		return v.([]*model.WorkspaceMember), nil
	}
	members, err := s.directory.ListWorkspaceMembers(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace members: %w", err)
	}
	s.memberCache.Set(key, members, cache.DefaultExpiration)
	return members, nil
}

func (s *Service) workspaceDefaults(ctx context.Context, workspaceID uuid.UUID) (model.NotificationPreference, error) {
	key := workspaceID.String()
	if v, ok := s.defaultsCache.Get(key); ok {
		return v.(model.NotificationPreference), nil
	}
	defaults, err := s.prefs.GetWorkspaceDefaults(ctx, workspaceID)
	if err != nil {
		return model.NotificationPreference{}, fmt.Errorf("failed to get workspace defaults: %w", err)
	}
	s.defaultsCache.Set(key, *defaults, cache.DefaultExpiration)
	return *defaults, nil
}

func enabledTokens(tokens []*model.PushToken) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Enabled() {
			out = append(out, t.Token)
		}
	}
	return out
}
