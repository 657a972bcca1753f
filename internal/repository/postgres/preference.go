package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
)

type preferenceRepository struct {
	BaseRepository
}

func NewPreferenceRepository(base BaseRepository) repository.PreferenceRepository {
	return &preferenceRepository{base}
}

func (r *preferenceRepository) GetWorkspaceDefaults(ctx context.Context, workspaceID uuid.UUID) (*model.NotificationPreference, error) {
	query := `
		SELECT muted, new_visitor_message_push, new_visitor_message_email
		FROM workspace_notification_defaults
		WHERE workspace_id = $1
	`
	var pref model.NotificationPreference
	if err := r.db.GetContext(ctx, &pref, query, workspaceID); err != nil {
		if err == sql.ErrNoRows {
			defaults := model.DefaultNotificationPreference()
			return &defaults, nil
		}
		return nil, fmt.Errorf("failed to get workspace notification defaults: %w", err)
	}
	return &pref, nil
}

func (r *preferenceRepository) GetOverride(ctx context.Context, userID, workspaceID uuid.UUID) (*model.PreferenceOverride, error) {
	query := `
		SELECT user_id, workspace_id, muted, new_visitor_message_push, new_visitor_message_email, updated_at
		FROM member_notification_preferences
		WHERE user_id = $1 AND workspace_id = $2
	`
	var override model.PreferenceOverride
	if err := r.db.GetContext(ctx, &override, query, userID, workspaceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification preference override: %w", err)
	}
	return &override, nil
}

type pushTokenRepository struct {
	BaseRepository
}

func NewPushTokenRepository(base BaseRepository) repository.PushTokenRepository {
	return &pushTokenRepository{base}
}

func (r *pushTokenRepository) ListPushTokens(ctx context.Context, userID uuid.UUID) ([]*model.PushToken, error) {
	return r.listTokens(ctx, model.RecipientTypeAgent, userID)
}

func (r *pushTokenRepository) ListVisitorPushTokens(ctx context.Context, visitorID uuid.UUID) ([]*model.PushToken, error) {
	return r.listTokens(ctx, model.RecipientTypeVisitor, visitorID)
}

func (r *pushTokenRepository) listTokens(ctx context.Context, ownerType model.RecipientType, ownerID uuid.UUID) ([]*model.PushToken, error) {
	query := `
		SELECT id, owner_type, owner_id, token, platform, notifications_enabled, created_at
		FROM push_tokens
		WHERE owner_type = $1 AND owner_id = $2
		ORDER BY created_at ASC
	`
	var tokens []*model.PushToken
	err := r.db.SelectContext(ctx, &tokens, query, ownerType, ownerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	return tokens, nil
}
