package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
	"github.com/teamtrack-io/teamtrack-engine/pkg/repositories"
)

// CreateProjectRequest carries the caller-supplied fields for a new
// project. ID comes from the token's project claim so the row lands in
// the caller's own tenant scope.
type CreateProjectRequest struct {
	ID        uuid.UUID
	Name      string
	ManagerID uuid.UUID
}

// UpdateProjectRequest is a field-level merge; nil fields are left
// untouched.
type UpdateProjectRequest struct {
	Name      *string
	ManagerID *uuid.UUID
}

// ProjectService defines the interface for project operations.
type ProjectService interface {
	Create(ctx context.Context, req CreateProjectRequest, actor models.Actor) (*models.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateProjectRequest, actor models.Actor) (*models.Project, error)
	// Delete removes the project. Its milestones are deliberately left in
	// place; orphaned milestones are accepted behavior, not a bug.
	Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error
	AddMember(ctx context.Context, projectID, userID uuid.UUID, roleLabel string, actor models.Actor) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID, actor models.Actor) error
}

// projectService implements ProjectService.
type projectService struct {
	projectRepo repositories.ProjectRepository
	engine      authz.Engine
	logger      *zap.Logger
}

// NewProjectService creates a new project service with dependencies.
func NewProjectService(projectRepo repositories.ProjectRepository, engine authz.Engine, logger *zap.Logger) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		engine:      engine,
		logger:      logger,
	}
}

// Create creates a project. If no manager is supplied the creating actor
// becomes the manager.
func (s *projectService) Create(ctx context.Context, req CreateProjectRequest, actor models.Actor) (*models.Project, error) {
	// No project exists yet, so there are no relationship facts.
	if err := authorize(s.engine, authz.ActionProjectCreate, actor, authz.Facts{}); err != nil {
		return nil, err
	}

	managerID := req.ManagerID
	if managerID == uuid.Nil {
		managerID = actor.ID
	}

	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	project := &models.Project{
		ID:        id,
		Name:      req.Name,
		ManagerID: managerID,
		CreatedBy: actor.ID,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// GetByID retrieves a project with its members.
func (s *projectService) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.projectRepo.GetByID(ctx, id)
}

// Update applies a field-level merge to a project.
func (s *projectService) Update(ctx context.Context, id uuid.UUID, req UpdateProjectRequest, actor models.Actor) (*models.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := authorize(s.engine, authz.ActionProjectUpdate, actor, projectFacts(project, actor)); err != nil {
		return nil, err
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.ManagerID != nil {
		project.ManagerID = *req.ManagerID
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// Delete removes a project.
func (s *projectService) Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := authorize(s.engine, authz.ActionProjectDelete, actor, projectFacts(project, actor)); err != nil {
		return err
	}

	return s.projectRepo.Delete(ctx, id)
}

// AddMember adds a user to the project team with a project-local role
// label.
func (s *projectService) AddMember(ctx context.Context, projectID, userID uuid.UUID, roleLabel string, actor models.Actor) error {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	if err := authorize(s.engine, authz.ActionProjectUpdate, actor, projectFacts(project, actor)); err != nil {
		return err
	}

	return s.projectRepo.AddMember(ctx, &models.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		RoleLabel: roleLabel,
	})
}

// RemoveMember removes a user from the project team.
func (s *projectService) RemoveMember(ctx context.Context, projectID, userID uuid.UUID, actor models.Actor) error {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	if err := authorize(s.engine, authz.ActionProjectUpdate, actor, projectFacts(project, actor)); err != nil {
		return err
	}

	return s.projectRepo.RemoveMember(ctx, projectID, userID)
}

// Ensure projectService implements ProjectService at compile time.
var _ ProjectService = (*projectService)(nil)
