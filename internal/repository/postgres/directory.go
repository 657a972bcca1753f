package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/helpdesk-api/internal/model"
	"github.com/jwalitptl/helpdesk-api/internal/repository"
)

type directoryRepository struct {
	BaseRepository
}

func NewDirectoryRepository(base BaseRepository) repository.DirectoryRepository {
	return &directoryRepository{base}
}

func (r *directoryRepository) ListWorkspaceMembers(ctx context.Context, workspaceID uuid.UUID) ([]*model.WorkspaceMember, error) {
	query := `
		SELECT workspace_id, user_id, role, created_at
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`
	var members []*model.WorkspaceMember
	err := r.db.SelectContext(ctx, &members, query, workspaceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace members: %w", err)
	}
	return members, nil
}

func (r *directoryRepository) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, email, name, created_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s not found", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *directoryRepository) GetVisitor(ctx context.Context, id uuid.UUID) (*model.Visitor, error) {
	query := `
		SELECT id, workspace_id, email, name, created_at
		FROM visitors
		WHERE id = $1
	`
	var visitor model.Visitor
	if err := r.db.GetContext(ctx, &visitor, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("visitor %s not found", id)
		}
		return nil, fmt.Errorf("failed to get visitor: %w", err)
	}
	return &visitor, nil
}
