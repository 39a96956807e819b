package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
	"github.com/teamtrack-io/teamtrack-engine/pkg/repositories"
)

// IssueService defines issue operations with design content: only delete
// carries a role-sensitive policy. Issue CRUD plumbing lives with the
// other flat resource endpoints.
type IssueService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	// Delete removes an issue. Allowed for the reporter or the project
	// manager; admin roles are explicitly restricted regardless of
	// relationship and receive ErrRoleRestricted.
	Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error
}

// issueService implements IssueService.
type issueService struct {
	issueRepo   repositories.IssueRepository
	projectRepo repositories.ProjectRepository
	engine      authz.Engine
	logger      *zap.Logger
}

// NewIssueService creates a new issue service with dependencies.
func NewIssueService(issueRepo repositories.IssueRepository, projectRepo repositories.ProjectRepository, engine authz.Engine, logger *zap.Logger) IssueService {
	return &issueService{
		issueRepo:   issueRepo,
		projectRepo: projectRepo,
		engine:      engine,
		logger:      logger,
	}
}

// GetByID retrieves an issue.
func (s *issueService) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	return s.issueRepo.GetByID(ctx, id)
}

// Delete removes an issue subject to the reporter-or-manager policy.
func (s *issueService) Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	issue, err := s.issueRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	project, err := s.projectRepo.GetByID(ctx, issue.ProjectID)
	if err != nil {
		return err
	}

	facts := creatorFacts(project, issue.ReporterID, actor)
	if err := authorize(s.engine, authz.ActionIssueDelete, actor, facts); err != nil {
		return err
	}

	return s.issueRepo.Delete(ctx, id)
}

// Ensure issueService implements IssueService at compile time.
var _ IssueService = (*issueService)(nil)
