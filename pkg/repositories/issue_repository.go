package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/teamtrack-io/teamtrack-engine/pkg/apperrors"
	"github.com/teamtrack-io/teamtrack-engine/pkg/database"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// IssueRepository defines the interface for issue data access.
type IssueRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// issueRepository implements IssueRepository using PostgreSQL.
type issueRepository struct{}

// NewIssueRepository creates a new issue repository.
func NewIssueRepository() IssueRepository {
	return &issueRepository{}
}

// GetByID retrieves an issue by ID.
func (r *issueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, project_id, reporter_id, title, created_at, updated_at
		FROM issues
		WHERE id = $1`

	var issue models.Issue
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&issue.ID,
		&issue.ProjectID,
		&issue.ReporterID,
		&issue.Title,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	return &issue, nil
}

// Delete removes an issue.
func (r *issueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure issueRepository implements IssueRepository at compile time.
var _ IssueRepository = (*issueRepository)(nil)
