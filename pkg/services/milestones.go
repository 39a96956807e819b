package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/apperrors"
	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/cache"
	"github.com/teamtrack-io/teamtrack-engine/pkg/database"
	"github.com/teamtrack-io/teamtrack-engine/pkg/events"
	"github.com/teamtrack-io/teamtrack-engine/pkg/metrics"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
	"github.com/teamtrack-io/teamtrack-engine/pkg/repositories"
)

// CreateMilestoneRequest carries the caller-supplied fields for a new
// milestone.
type CreateMilestoneRequest struct {
	Name           string
	DueDate        *time.Time
	ProgressMethod models.ProgressMethod
	Status         models.MilestoneStatus
	AssignedUsers  []uuid.UUID
}

// UpdateMilestoneRequest is a field-level merge; nil fields are left
// untouched.
type UpdateMilestoneRequest struct {
	Name           *string
	DueDate        *time.Time
	ProgressMethod *models.ProgressMethod
	Status         *models.MilestoneStatus
	Progress       *int
	AssignedUsers  []uuid.UUID
}

// MilestoneService owns the milestone lifecycle: creation under the
// per-project cap, guarded transitions, locking, soft delete, and the
// append-only progress audit trail. Status, progress, lock, and
// soft-delete fields are mutated here and nowhere else.
type MilestoneService interface {
	Create(ctx context.Context, projectID uuid.UUID, req CreateMilestoneRequest, actor models.Actor) (*models.Milestone, error)
	Get(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, error)
	ListActive(ctx context.Context, projectID uuid.UUID) ([]*models.Milestone, error)
	Update(ctx context.Context, milestoneID uuid.UUID, req UpdateMilestoneRequest, actor models.Actor) (*models.Milestone, error)
	RequestApproval(ctx context.Context, milestoneID uuid.UUID, actor models.Actor) (*models.Milestone, error)
	Review(ctx context.Context, milestoneID uuid.UUID, actor models.Actor, decision models.ReviewDecision) (*models.Milestone, error)
	Lock(ctx context.Context, milestoneID uuid.UUID, actor models.Actor) (*models.Milestone, error)
	Unlock(ctx context.Context, milestoneID uuid.UUID, actor models.Actor) (*models.Milestone, error)
	SoftDelete(ctx context.Context, milestoneID uuid.UUID, actor models.Actor) error
	RecordProgress(ctx context.Context, milestoneID uuid.UUID, newProgress int, actor models.Actor, reason string) (*models.Milestone, error)
	GetProgressHistory(ctx context.Context, milestoneID uuid.UUID) ([]models.ProgressEntry, error)
}

// milestoneService implements MilestoneService.
type milestoneService struct {
	milestoneRepo repositories.MilestoneRepository
	projectRepo   repositories.ProjectRepository
	engine        authz.Engine
	publisher     events.Publisher
	listCache     *cache.MilestoneCache
	logger        *zap.Logger
}

// NewMilestoneService creates a new milestone service with dependencies.
// listCache may be nil to disable caching.
func NewMilestoneService(
	milestoneRepo repositories.MilestoneRepository,
	projectRepo repositories.ProjectRepository,
	engine authz.Engine,
	publisher events.Publisher,
	listCache *cache.MilestoneCache,
	logger *zap.Logger,
) MilestoneService {
	return &milestoneService{
		milestoneRepo: milestoneRepo,
		projectRepo:   projectRepo,
		engine:        engine,
		publisher:     publisher,
		listCache:     listCache,
		logger:        logger,
	}
}

// Create adds a milestone to a project, enforcing the per-project cap on
// non-deleted milestones. Returns ErrLimitExceeded when the project
// already holds the maximum.
func (s *milestoneService) Create(ctx context.Context, projectID uuid.UUID, req CreateMilestoneRequest, actor models.Actor) (*models.Milestone, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if err := authorize(s.engine, authz.ActionMilestoneCreate, actor, projectFacts(project, actor)); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.MilestoneStatusNotStarted
	}
	// Completion and pending approval are only reachable through the
	// approval workflow, never set at creation.
	switch status {
	case models.MilestoneStatusNotStarted, models.MilestoneStatusInProgress, models.MilestoneStatusBlocked:
	default:
		return nil, apperrors.ErrInvalidState
	}

	method := req.ProgressMethod
	if method == "" {
		method = models.ProgressMethodManual
	}
	if !models.IsValidProgressMethod(method) {
		return nil, fmt.Errorf("invalid progress method: %s", method)
	}

	milestone := &models.Milestone{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Name:           req.Name,
		DueDate:        req.DueDate,
		Progress:       0,
		ProgressMethod: method,
		Status:         status,
		CreatedBy:      actor.ID,
		AssignedUsers:  req.AssignedUsers,
	}

	if err := s.milestoneRepo.CreateWithCapCheck(ctx, milestone); err != nil {
		return nil, err
	}

	s.listCache.Invalidate(ctx, projectID)
	s.publisher.PublishMilestone(ctx, events.MilestoneCreated, events.MilestoneEvent{
		MilestoneID: milestone.ID,
		ProjectID:   projectID,
		Status:      string(milestone.Status),
		ActorID:     actor.ID,
		OccurredAt:  milestone.CreatedAt,
	})

	return milestone, nil
}

// Get retrieves an active milestone.
func (s *milestoneService) Get(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, error) {
	return s.milestoneRepo.GetByID(ctx, milestoneID)
}

// ListActive retrieves the non-deleted milestones for a project,
// consulting the read cache first.
func (s *milestoneService) ListActive(ctx context.Context, projectID uuid.UUID) ([]*models.Milestone, error) {
	if cached := s.listCache.GetActiveList(ctx, projectID); cached != nil {
		return cached, nil
	}

	milestones, err := s.milestoneRepo.ListActiveByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	s.listCache.SetActiveList(ctx, projectID, milestones)
	return milestones, nil
}

// Update performs a field-level merge. The milestone must not be locked
// unless the actor is the lock holder or a super admin. Free-form edits
// (name, due date) are unguarded by the state machine, but supplied
// status and progress values must still satisfy the model invariants.
func (s *milestoneService) Update(ctx context.Context, milestoneID uuid.UUID, req UpdateMilestoneRequest, actor models.Actor) (*models.Milestone, error) {
	var updated *models.Milestone
	err := s.inTransaction(ctx, milestoneID, actor, authz.ActionMilestoneUpdate, func(ctx context.Context, milestone *models.Milestone) error {
		if req.Status != nil {
			if !models.IsValidMilestoneStatus(*req.Status) {
				return apperrors.ErrInvalidState
			}
			// COMPLETED is set atomically on approval, never by update,
			// and a completed milestone has no further transitions.
			if milestone.Status.IsTerminal() || *req.Status == models.MilestoneStatusCompleted {
				return apperrors.ErrInvalidState
			}
			if *req.Status != milestone.Status {
				metrics.MilestoneTransitions.WithLabelValues(string(milestone.Status), string(*req.Status)).Inc()
				milestone.Status = *req.Status
			}
		}

		if req.Progress != nil {
			if milestone.Status.IsTerminal() {
				return apperrors.ErrInvalidState
			}
			if !models.IsValidProgress(*req.Progress) {
				return apperrors.ErrInvalidProgress
			}
			if *req.Progress != milestone.Progress {
				entry := &models.ProgressEntry{
					ID:          uuid.New(),
					MilestoneID: milestone.ID,
					Progress:    *req.Progress,
					ChangedBy:   actor.ID,
					ChangedAt:   time.Now(),
					Reason:      "updated",
				}
				if err := s.milestoneRepo.AppendProgress(ctx, entry); err != nil {
					return err
				}
				milestone.Progress = *req.Progress
			}
		}

		if req.Name != nil {
			milestone.Name = *req.Name
		}
		if req.DueDate != nil {
			milestone.DueDate = req.DueDate
		}
		if req.ProgressMethod != nil {
			if !models.IsValidProgressMethod(*req.ProgressMethod) {
				return fmt.Errorf("invalid progress method: %s", *req.ProgressMethod)
			}
			milestone.ProgressMethod = *req.ProgressMethod
		}
		if req.AssignedUsers != nil {
			milestone.AssignedUsers = req.AssignedUsers
		}

		if err := s.milestoneRepo.Update(ctx, milestone); err != nil {
			return err
		}
		updated = milestone
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.listCache.Invalidate(ctx, updated.ProjectID)
	return updated, nil
}

// RequestApproval moves a milestone into PENDING_APPROVAL. Legal only
// from NOT_STARTED or IN_PROGRESS; a second request while already
// pending fails with ErrInvalidState rather than silently no-opping.
func (s *milestoneService) RequestApproval(ctx context.Context, milestoneID uuid.UUID, actor models.Actor) (*models.Milestone, error) {
	var updated *models.Milestone
	err := s.inTransaction(ctx, milestoneID, actor, authz.ActionMilestoneRequestApproval, func(ctx context.Context, milestone *models.Milestone) error {
		if !milestone.Status.CanRequestApproval() {
			return apperrors.ErrInvalidState
		}

		now := time.Now()
		metrics.MilestoneTransitions.WithLabelValues(string(milestone.Status), string(models.MilestoneStatusPendingApproval)).Inc()
		milestone.Status = models.MilestoneStatusPendingApproval
		milestone.ApprovalRequestedBy = &actor.ID
		milestone.ApprovalRequestedAt = &now

		if err := s.milestoneRepo.Update(ctx, milestone); err != nil {
			return err
		}
		updated = milestone
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.listCache.Invalidate(ctx, updated.ProjectID)
	return updated, nil
}

// Review resolves a pending approval. APPROVE completes the milestone
// and forces progress to 100 in the same write, with one audit entry
// recording the jump; REJECT returns it to IN_PROGRESS and clears the
// request fields. Reviewing a milestone that is not pending fails with
// ErrInvalidState.
func (s *milestoneService) Review(ctx context.Context, milestoneID uuid.UUID, actor models.Actor, decision models.ReviewDecision) (*models.Milestone, error) {
	if decision != models.ReviewApprove && decision != models.ReviewReject {
		return nil, apperrors.ErrInvalidAction
	}

	var updated *models.Milestone
	err := s.inTransaction(ctx, milestoneID, actor, authz.ActionMilestoneReview, func(ctx context.Context, milestone *models.Milestone) error {
		if milestone.Status != models.MilestoneStatusPendingApproval {
			return apperrors.ErrInvalidState
		}

		now := time.Now()
		if decision == models.ReviewApprove {
			entry := &models.ProgressEntry{
				ID:          uuid.New(),
				MilestoneID: milestone.ID,
				Progress:    100,
				ChangedBy:   actor.ID,
				ChangedAt:   now,
				Reason:      "approved",
			}
			if err := s.milestoneRepo.AppendProgress(ctx, entry); err != nil {
				return err
			}

			metrics.MilestoneTransitions.WithLabelValues(string(milestone.Status), string(models.MilestoneStatusCompleted)).Inc()
			milestone.Status = models.MilestoneStatusCompleted
			milestone.Progress = 100
			milestone.ApprovedBy = &actor.ID
			milestone.ApprovedAt = &now
		} else {
			metrics.MilestoneTransitions.WithLabelValues(string(milestone.Status), string(models.MilestoneStatusInProgress)).Inc()
			milestone.Status = models.MilestoneStatusInProgress
			milestone.ApprovalRequestedBy = nil
			milestone.ApprovalRequestedAt = nil
		}

		if err := s.milestoneRepo.Update(ctx, milestone); err != nil {
			return err
		}
		updated = milestone
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.listCache.Invalidate(ctx, updated.ProjectID)

	routingKey := events.MilestoneApproved
	if decision == models.ReviewReject {
		routingKey = events.MilestoneRejected
	}
	s.publisher.PublishMilestone(ctx, routingKey, events.MilestoneEvent{
		MilestoneID: updated.ID,
		ProjectID:   updated.ProjectID,
		Status:      string(updated.Status),
		ActorID:     actor.ID,
		OccurredAt:  time.Now(),
	})

	return updated, nil
}

// Lock takes the milestone lock for the actor. Locking a milestone
// already locked by someone else fails with ErrLocked; relocking by the
// current holder is a no-op.
func (s *milestoneService) Lock(ctx context.Context, milestoneID uuid.UUID, actor models.Actor) (*models.Milestone, error) {
	var updated *models.Milestone
	err := s.inTransaction(ctx, milestoneID, actor, authz.ActionMilestoneUpdate, func(ctx context.Context, milestone *models.Milestone) error {
		if milestone.IsLocked {
			if milestone.IsLockHolder(actor.ID) {
				updated = milestone
				return nil
			}
			return apperrors.ErrLocked
		}

		now := time.Now()
		milestone.IsLocked = true
		milestone.LockedBy = &actor.ID
		milestone.LockedAt = &now

		if err := s.milestoneRepo.Update(ctx, milestone); err != nil {
			return err
		}
		updated = milestone
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.listCache.Invalidate(ctx, updated.ProjectID)
	return updated, nil
}

// Unlock releases the milestone lock. Only the holder or a super admin
// may release a held lock; unlocking an unlocked milestone is a no-op.
func (s *milestoneService) Unlock(ctx context.Context, milestoneID uuid.UUID, actor models.Actor) (*models.Milestone, error) {
	var updated *models.Milestone
	err := s.inTransaction(ctx, milestoneID, actor, authz.ActionMilestoneUpdate, func(ctx context.Context, milestone *models.Milestone) error {
		if !milestone.IsLocked {
			updated = milestone
			return nil
		}

		milestone.IsLocked = false
		milestone.LockedBy = nil
		milestone.LockedAt = nil

		if err := s.milestoneRepo.Update(ctx, milestone); err != nil {
			return err
		}
		updated = milestone
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.listCache.Invalidate(ctx, updated.ProjectID)
	return updated, nil
}

// SoftDelete flags a milestone as deleted. The row is retained; the
// milestone disappears from all active reads and stops counting toward
// the per-project cap.
func (s *milestoneService) SoftDelete(ctx context.Context, milestoneID uuid.UUID, actor models.Actor) error {
	milestone, err := s.milestoneRepo.GetByID(ctx, milestoneID)
	if err != nil {
		return err
	}

	project, err := s.projectRepo.GetByID(ctx, milestone.ProjectID)
	if err != nil {
		return err
	}

	if err := authorize(s.engine, authz.ActionMilestoneDelete, actor, milestoneFacts(project, milestone, actor)); err != nil {
		return err
	}

	now := time.Now()
	if err := s.milestoneRepo.SoftDelete(ctx, milestoneID, actor.ID, now); err != nil {
		return err
	}

	s.listCache.Invalidate(ctx, milestone.ProjectID)
	s.publisher.PublishMilestone(ctx, events.MilestoneDeleted, events.MilestoneEvent{
		MilestoneID: milestone.ID,
		ProjectID:   milestone.ProjectID,
		Status:      string(milestone.Status),
		ActorID:     actor.ID,
		OccurredAt:  now,
	})

	return nil
}

// RecordProgress appends an audit entry and then sets the new progress
// value. The history entry is written first so the trail is complete
// even if a reader races the value update.
func (s *milestoneService) RecordProgress(ctx context.Context, milestoneID uuid.UUID, newProgress int, actor models.Actor, reason string) (*models.Milestone, error) {
	if !models.IsValidProgress(newProgress) {
		return nil, apperrors.ErrInvalidProgress
	}

	var updated *models.Milestone
	err := s.inTransaction(ctx, milestoneID, actor, authz.ActionMilestoneUpdate, func(ctx context.Context, milestone *models.Milestone) error {
		if milestone.Status.IsTerminal() {
			return apperrors.ErrInvalidState
		}

		entry := &models.ProgressEntry{
			ID:          uuid.New(),
			MilestoneID: milestone.ID,
			Progress:    newProgress,
			ChangedBy:   actor.ID,
			ChangedAt:   time.Now(),
			Reason:      reason,
		}
		if err := s.milestoneRepo.AppendProgress(ctx, entry); err != nil {
			return err
		}

		milestone.Progress = newProgress
		if err := s.milestoneRepo.Update(ctx, milestone); err != nil {
			return err
		}
		updated = milestone
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.listCache.Invalidate(ctx, updated.ProjectID)
	return updated, nil
}

// GetProgressHistory retrieves the append-only audit trail.
func (s *milestoneService) GetProgressHistory(ctx context.Context, milestoneID uuid.UUID) ([]models.ProgressEntry, error) {
	if _, err := s.milestoneRepo.GetByID(ctx, milestoneID); err != nil {
		return nil, err
	}
	return s.milestoneRepo.GetProgressHistory(ctx, milestoneID)
}

// inTransaction runs a guarded milestone mutation: begin a transaction
// on the tenant connection, read the milestone with a row lock,
// authorize the action, enforce the lock guard, then hand off to fn and
// commit. The row lock serializes check-then-update sequences against
// concurrent writers.
func (s *milestoneService) inTransaction(ctx context.Context, milestoneID uuid.UUID, actor models.Actor, action authz.Action, fn func(ctx context.Context, milestone *models.Milestone) error) (err error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	milestone, err := s.milestoneRepo.GetByIDForUpdate(ctx, milestoneID)
	if err != nil {
		return err
	}

	project, err := s.projectRepo.GetByID(ctx, milestone.ProjectID)
	if err != nil {
		return err
	}

	facts := milestoneFacts(project, milestone, actor)
	if err = authorize(s.engine, action, actor, facts); err != nil {
		return err
	}

	if milestone.IsLocked && !authz.CanBypassLock(actor.Role, facts) {
		return apperrors.ErrLocked
	}

	if err = fn(ctx, milestone); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Ensure milestoneService implements MilestoneService at compile time.
var _ MilestoneService = (*milestoneService)(nil)
