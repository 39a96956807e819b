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

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, member *models.ProjectMember) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct{}

// NewProjectRepository creates a new project repository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{}
}

// Create inserts a new project.
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	query := `
		INSERT INTO projects (id, name, manager_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := scope.Conn.Exec(ctx, query,
		project.ID,
		project.Name,
		project.ManagerID,
		project.CreatedBy,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project and its team members.
func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, name, manager_id, created_by, created_at, updated_at
		FROM projects
		WHERE id = $1`

	var project models.Project
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.ManagerID,
		&project.CreatedBy,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	memberQuery := `
		SELECT project_id, user_id, role_label, created_at
		FROM project_members
		WHERE project_id = $1
		ORDER BY created_at`

	rows, err := scope.Conn.Query(ctx, memberQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var member models.ProjectMember
		err := rows.Scan(
			&member.ProjectID,
			&member.UserID,
			&member.RoleLabel,
			&member.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		project.Members = append(project.Members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project members: %w", err)
	}

	return &project, nil
}

// Update updates a project's mutable fields.
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE projects
		SET name = $1, manager_id = $2, updated_at = $3
		WHERE id = $4`

	result, err := scope.Conn.Exec(ctx, query, project.Name, project.ManagerID, time.Now(), project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a project. Milestones are intentionally not cascaded;
// orphaned milestones are accepted behavior.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// AddMember adds a user to the project team.
func (r *projectRepository) AddMember(ctx context.Context, member *models.ProjectMember) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	member.CreatedAt = time.Now()

	query := `
		INSERT INTO project_members (project_id, user_id, role_label, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, user_id) DO UPDATE
		SET role_label = EXCLUDED.role_label`

	_, err := scope.Conn.Exec(ctx, query,
		member.ProjectID,
		member.UserID,
		member.RoleLabel,
		member.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add project member: %w", err)
	}

	return nil
}

// RemoveMember removes a user from the project team.
func (r *projectRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`

	result, err := scope.Conn.Exec(ctx, query, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure projectRepository implements ProjectRepository at compile time.
var _ ProjectRepository = (*projectRepository)(nil)
