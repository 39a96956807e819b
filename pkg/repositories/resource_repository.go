package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/teamtrack-io/teamtrack-engine/pkg/apperrors"
	"github.com/teamtrack-io/teamtrack-engine/pkg/database"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// ResourceRepository defines the interface for owned-resource data access
// (comments, chat messages, files, documents).
type ResourceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.OwnedResource, error)
	UpdateBody(ctx context.Context, id uuid.UUID, body string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// resourceRepository implements ResourceRepository using PostgreSQL.
type resourceRepository struct{}

// NewResourceRepository creates a new owned-resource repository.
func NewResourceRepository() ResourceRepository {
	return &resourceRepository{}
}

// GetByID retrieves an owned resource by ID.
func (r *resourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.OwnedResource, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, project_id, kind, created_by, body, created_at, updated_at
		FROM resources
		WHERE id = $1`

	var resource models.OwnedResource
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&resource.ID,
		&resource.ProjectID,
		&resource.Kind,
		&resource.CreatedBy,
		&resource.Body,
		&resource.CreatedAt,
		&resource.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	return &resource, nil
}

// UpdateBody replaces a resource's body.
func (r *resourceRepository) UpdateBody(ctx context.Context, id uuid.UUID, body string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `UPDATE resources SET body = $1, updated_at = $2 WHERE id = $3`

	result, err := scope.Conn.Exec(ctx, query, body, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes an owned resource.
func (r *resourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure resourceRepository implements ResourceRepository at compile time.
var _ ResourceRepository = (*resourceRepository)(nil)
