package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/apperrors"
	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/database"
	"github.com/teamtrack-io/teamtrack-engine/pkg/events"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
	"github.com/teamtrack-io/teamtrack-engine/pkg/repositories"
	"github.com/teamtrack-io/teamtrack-engine/pkg/testhelpers"
)

// newIntegrationContext provisions a fresh project with a tenant-scoped
// context and returns the milestone service wired against the real
// database.
func newIntegrationContext(t *testing.T) (context.Context, MilestoneService, *models.Project, models.Actor) {
	t.Helper()

	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	projectID := uuid.New()
	scope, err := engineDB.DB.WithTenant(ctx, projectID)
	if err != nil {
		t.Fatalf("Failed to acquire tenant scope: %v", err)
	}
	t.Cleanup(scope.Close)
	ctx = database.SetTenantScope(ctx, scope)

	manager := models.Actor{ID: uuid.New(), Role: models.RoleProjectManager}
	project := &models.Project{
		ID:        projectID,
		Name:      "Integration Project",
		ManagerID: manager.ID,
		CreatedBy: manager.ID,
	}

	projectRepo := repositories.NewProjectRepository()
	if err := projectRepo.Create(ctx, project); err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}

	svc := NewMilestoneService(
		repositories.NewMilestoneRepository(),
		projectRepo,
		authz.NewEngine(),
		events.NewNoopPublisher(),
		nil,
		zap.NewNop(),
	)

	return ctx, svc, project, manager
}

func TestMilestoneCapIntegration(t *testing.T) {
	ctx, svc, project, manager := newIntegrationContext(t)

	var first *models.Milestone
	for i := 0; i < models.MaxActiveMilestones; i++ {
		m, err := svc.Create(ctx, project.ID, CreateMilestoneRequest{Name: fmt.Sprintf("Milestone %d", i+1)}, manager)
		if err != nil {
			t.Fatalf("Create %d failed: %v", i+1, err)
		}
		if first == nil {
			first = m
		}
	}

	// The sixth active milestone must be refused.
	if _, err := svc.Create(ctx, project.ID, CreateMilestoneRequest{Name: "One too many"}, manager); !errors.Is(err, apperrors.ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}

	// Soft-deleting one frees a slot.
	if err := svc.SoftDelete(ctx, first.ID, manager); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if _, err := svc.Create(ctx, project.ID, CreateMilestoneRequest{Name: "Replacement"}, manager); err != nil {
		t.Fatalf("Create after delete failed: %v", err)
	}

	// The deleted milestone is gone from active reads but not from disk.
	active, err := svc.ListActive(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	for _, m := range active {
		if m.ID == first.ID {
			t.Error("soft-deleted milestone still listed as active")
		}
	}
	if _, err := svc.Get(ctx, first.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get on deleted milestone: err = %v, want ErrNotFound", err)
	}
}

func TestApprovalWorkflowIntegration(t *testing.T) {
	ctx, svc, project, manager := newIntegrationContext(t)

	t.Run("approve completes and forces progress", func(t *testing.T) {
		m, err := svc.Create(ctx, project.ID, CreateMilestoneRequest{Name: "Design", Status: models.MilestoneStatusInProgress}, manager)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if _, err := svc.RecordProgress(ctx, m.ID, 60, manager, "halfway"); err != nil {
			t.Fatalf("RecordProgress failed: %v", err)
		}

		pending, err := svc.RequestApproval(ctx, m.ID, manager)
		if err != nil {
			t.Fatalf("RequestApproval failed: %v", err)
		}
		if pending.Status != models.MilestoneStatusPendingApproval {
			t.Fatalf("status = %s, want PENDING_APPROVAL", pending.Status)
		}
		if pending.ApprovalRequestedBy == nil || *pending.ApprovalRequestedBy != manager.ID {
			t.Error("approval requester not recorded")
		}

		// A second request while pending must fail.
		if _, err := svc.RequestApproval(ctx, m.ID, manager); !errors.Is(err, apperrors.ErrInvalidState) {
			t.Errorf("second request: err = %v, want ErrInvalidState", err)
		}

		done, err := svc.Review(ctx, m.ID, manager, models.ReviewApprove)
		if err != nil {
			t.Fatalf("Review approve failed: %v", err)
		}
		if done.Status != models.MilestoneStatusCompleted || done.Progress != 100 {
			t.Errorf("got status %s progress %d, want COMPLETED 100", done.Status, done.Progress)
		}

		// The jump to 100 leaves an audit entry.
		history, err := svc.GetProgressHistory(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetProgressHistory failed: %v", err)
		}
		if len(history) != 2 || history[0].Progress != 60 || history[1].Progress != 100 {
			t.Errorf("unexpected history: %+v", history)
		}

		// Completed milestones accept no further mutation.
		if _, err := svc.RecordProgress(ctx, m.ID, 50, manager, ""); !errors.Is(err, apperrors.ErrInvalidState) {
			t.Errorf("progress on completed: err = %v, want ErrInvalidState", err)
		}
		if _, err := svc.Review(ctx, m.ID, manager, models.ReviewApprove); !errors.Is(err, apperrors.ErrInvalidState) {
			t.Errorf("review on completed: err = %v, want ErrInvalidState", err)
		}
	})

	t.Run("reject returns to in progress", func(t *testing.T) {
		m, err := svc.Create(ctx, project.ID, CreateMilestoneRequest{Name: "Build"}, manager)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if _, err := svc.RequestApproval(ctx, m.ID, manager); err != nil {
			t.Fatalf("RequestApproval failed: %v", err)
		}

		rejected, err := svc.Review(ctx, m.ID, manager, models.ReviewReject)
		if err != nil {
			t.Fatalf("Review reject failed: %v", err)
		}
		if rejected.Status != models.MilestoneStatusInProgress {
			t.Errorf("status = %s, want IN_PROGRESS", rejected.Status)
		}
		if rejected.ApprovalRequestedBy != nil || rejected.ApprovalRequestedAt != nil {
			t.Error("request fields should be cleared on rejection")
		}
	})
}

func TestMilestoneLockIntegration(t *testing.T) {
	ctx, svc, project, manager := newIntegrationContext(t)

	other := models.Actor{ID: uuid.New(), Role: models.RoleProjectManager}
	superAdmin := models.Actor{ID: uuid.New(), Role: models.RoleSuperAdmin}
	newName := "Renamed"

	m, err := svc.Create(ctx, project.ID, CreateMilestoneRequest{Name: "Deploy"}, manager)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Lock(ctx, m.ID, manager); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// Relocking by the holder is a no-op; locking by anyone else fails.
	if _, err := svc.Lock(ctx, m.ID, manager); err != nil {
		t.Errorf("relock by holder: %v", err)
	}
	if _, err := svc.Lock(ctx, m.ID, other); !errors.Is(err, apperrors.ErrLocked) {
		t.Errorf("lock by other: err = %v, want ErrLocked", err)
	}

	// Non-holders cannot mutate a locked milestone; the holder and a
	// super admin can.
	if _, err := svc.Update(ctx, m.ID, UpdateMilestoneRequest{Name: &newName}, other); !errors.Is(err, apperrors.ErrLocked) {
		t.Errorf("update by other: err = %v, want ErrLocked", err)
	}
	if _, err := svc.Update(ctx, m.ID, UpdateMilestoneRequest{Name: &newName}, manager); err != nil {
		t.Errorf("update by holder: %v", err)
	}
	if _, err := svc.Update(ctx, m.ID, UpdateMilestoneRequest{Name: &newName}, superAdmin); err != nil {
		t.Errorf("update by super admin: %v", err)
	}

	// Only the holder may unlock.
	if _, err := svc.Unlock(ctx, m.ID, other); !errors.Is(err, apperrors.ErrLocked) {
		t.Errorf("unlock by other: err = %v, want ErrLocked", err)
	}
	unlocked, err := svc.Unlock(ctx, m.ID, manager)
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if unlocked.IsLocked || unlocked.LockedBy != nil {
		t.Error("lock fields should be cleared")
	}

	// Unlocking an unlocked milestone is a no-op.
	if _, err := svc.Unlock(ctx, m.ID, other); err != nil {
		t.Errorf("unlock when unlocked: %v", err)
	}
}
