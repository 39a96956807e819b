package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
	"github.com/teamtrack-io/teamtrack-engine/pkg/repositories"
)

// ResourceService governs user-owned resources (comments, messages,
// files, documents) under the own-resource policy: the creator may edit
// or delete, a super admin may do either, everyone else is denied.
type ResourceService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.OwnedResource, error)
	UpdateBody(ctx context.Context, id uuid.UUID, body string, actor models.Actor) (*models.OwnedResource, error)
	Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error
}

// resourceService implements ResourceService.
type resourceService struct {
	resourceRepo repositories.ResourceRepository
	projectRepo  repositories.ProjectRepository
	engine       authz.Engine
	logger       *zap.Logger
}

// NewResourceService creates a new owned-resource service with
// dependencies.
func NewResourceService(resourceRepo repositories.ResourceRepository, projectRepo repositories.ProjectRepository, engine authz.Engine, logger *zap.Logger) ResourceService {
	return &resourceService{
		resourceRepo: resourceRepo,
		projectRepo:  projectRepo,
		engine:       engine,
		logger:       logger,
	}
}

// GetByID retrieves an owned resource.
func (s *resourceService) GetByID(ctx context.Context, id uuid.UUID) (*models.OwnedResource, error) {
	return s.resourceRepo.GetByID(ctx, id)
}

// UpdateBody replaces a resource's body, creator-only.
func (s *resourceService) UpdateBody(ctx context.Context, id uuid.UUID, body string, actor models.Actor) (*models.OwnedResource, error) {
	resource, err := s.authorizeOwn(ctx, id, authz.ActionOwnResourceEdit, actor)
	if err != nil {
		return nil, err
	}

	if err := s.resourceRepo.UpdateBody(ctx, id, body); err != nil {
		return nil, err
	}

	resource.Body = body
	return resource, nil
}

// Delete removes a resource, creator-only.
func (s *resourceService) Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	if _, err := s.authorizeOwn(ctx, id, authz.ActionOwnResourceDelete, actor); err != nil {
		return err
	}
	return s.resourceRepo.Delete(ctx, id)
}

// authorizeOwn resolves the resource and its project and checks the
// own-resource policy.
func (s *resourceService) authorizeOwn(ctx context.Context, id uuid.UUID, action authz.Action, actor models.Actor) (*models.OwnedResource, error) {
	resource, err := s.resourceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, resource.ProjectID)
	if err != nil {
		return nil, err
	}

	facts := creatorFacts(project, resource.CreatedBy, actor)
	if err := authorize(s.engine, action, actor, facts); err != nil {
		return nil, err
	}

	return resource, nil
}

// Ensure resourceService implements ResourceService at compile time.
var _ ResourceService = (*resourceService)(nil)
