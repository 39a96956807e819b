package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/apperrors"
	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/events"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// mockMilestoneRepo is a hand-rolled mock; set only the functions the
// test exercises.
type mockMilestoneRepo struct {
	createWithCapCheckFunc func(ctx context.Context, m *models.Milestone) error
	getByIDFunc            func(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	softDeleteFunc         func(ctx context.Context, id, deletedBy uuid.UUID, deletedAt time.Time) error
	listActiveFunc         func(ctx context.Context, projectID uuid.UUID) ([]*models.Milestone, error)
	getHistoryFunc         func(ctx context.Context, milestoneID uuid.UUID) ([]models.ProgressEntry, error)
}

func (m *mockMilestoneRepo) CreateWithCapCheck(ctx context.Context, milestone *models.Milestone) error {
	return m.createWithCapCheckFunc(ctx, milestone)
}

func (m *mockMilestoneRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockMilestoneRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockMilestoneRepo) Update(ctx context.Context, milestone *models.Milestone) error {
	return nil
}

func (m *mockMilestoneRepo) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, deletedAt time.Time) error {
	return m.softDeleteFunc(ctx, id, deletedBy, deletedAt)
}

func (m *mockMilestoneRepo) ListActiveByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Milestone, error) {
	return m.listActiveFunc(ctx, projectID)
}

func (m *mockMilestoneRepo) CountActiveByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	return 0, nil
}

func (m *mockMilestoneRepo) AppendProgress(ctx context.Context, entry *models.ProgressEntry) error {
	return nil
}

func (m *mockMilestoneRepo) GetProgressHistory(ctx context.Context, milestoneID uuid.UUID) ([]models.ProgressEntry, error) {
	return m.getHistoryFunc(ctx, milestoneID)
}

type mockProjectRepo struct {
	createFunc    func(ctx context.Context, project *models.Project) error
	getByIDFunc   func(ctx context.Context, id uuid.UUID) (*models.Project, error)
	updateFunc    func(ctx context.Context, project *models.Project) error
	addMemberFunc func(ctx context.Context, member *models.ProjectMember) error
}

func (m *mockProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, project)
	}
	return nil
}

func (m *mockProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockProjectRepo) Update(ctx context.Context, project *models.Project) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, project)
	}
	return nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockProjectRepo) AddMember(ctx context.Context, member *models.ProjectMember) error {
	if m.addMemberFunc != nil {
		return m.addMemberFunc(ctx, member)
	}
	return nil
}

func (m *mockProjectRepo) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) PublishMilestone(ctx context.Context, routingKey string, event events.MilestoneEvent) {
	p.events = append(p.events, routingKey)
}

func (p *recordingPublisher) Close() {}

func testProject(managerID uuid.UUID) *models.Project {
	return &models.Project{
		ID:        uuid.New(),
		Name:      "Website Redesign",
		ManagerID: managerID,
	}
}

func newTestMilestoneService(milestoneRepo *mockMilestoneRepo, projectRepo *mockProjectRepo, publisher events.Publisher) MilestoneService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return NewMilestoneService(milestoneRepo, projectRepo, authz.NewEngine(), publisher, nil, zap.NewNop())
}

func TestCreateMilestone(t *testing.T) {
	manager := models.Actor{ID: uuid.New(), Role: models.RoleProjectManager}
	project := testProject(manager.ID)

	projectRepo := &mockProjectRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Project, error) {
			return project, nil
		},
	}

	t.Run("defaults to not started", func(t *testing.T) {
		var created *models.Milestone
		milestoneRepo := &mockMilestoneRepo{
			createWithCapCheckFunc: func(ctx context.Context, m *models.Milestone) error {
				created = m
				return nil
			},
		}
		publisher := &recordingPublisher{}
		svc := newTestMilestoneService(milestoneRepo, projectRepo, publisher)

		milestone, err := svc.Create(context.Background(), project.ID, CreateMilestoneRequest{Name: "Launch"}, manager)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if milestone.Status != models.MilestoneStatusNotStarted {
			t.Errorf("status = %s, want NOT_STARTED", milestone.Status)
		}
		if created == nil || created.CreatedBy != manager.ID {
			t.Error("expected milestone persisted with creator set")
		}
		if len(publisher.events) != 1 || publisher.events[0] != events.MilestoneCreated {
			t.Errorf("published events = %v, want [%s]", publisher.events, events.MilestoneCreated)
		}
	})

	t.Run("rejects approval workflow statuses at creation", func(t *testing.T) {
		milestoneRepo := &mockMilestoneRepo{
			createWithCapCheckFunc: func(ctx context.Context, m *models.Milestone) error {
				t.Fatal("milestone should not be persisted")
				return nil
			},
		}
		svc := newTestMilestoneService(milestoneRepo, projectRepo, nil)

		for _, status := range []models.MilestoneStatus{models.MilestoneStatusPendingApproval, models.MilestoneStatusCompleted} {
			_, err := svc.Create(context.Background(), project.ID, CreateMilestoneRequest{Name: "Launch", Status: status}, manager)
			if !errors.Is(err, apperrors.ErrInvalidState) {
				t.Errorf("Create with status %s: err = %v, want ErrInvalidState", status, err)
			}
		}
	})

	t.Run("propagates cap violation", func(t *testing.T) {
		milestoneRepo := &mockMilestoneRepo{
			createWithCapCheckFunc: func(ctx context.Context, m *models.Milestone) error {
				return apperrors.ErrLimitExceeded
			},
		}
		publisher := &recordingPublisher{}
		svc := newTestMilestoneService(milestoneRepo, projectRepo, publisher)

		_, err := svc.Create(context.Background(), project.ID, CreateMilestoneRequest{Name: "Sixth"}, manager)
		if !errors.Is(err, apperrors.ErrLimitExceeded) {
			t.Errorf("err = %v, want ErrLimitExceeded", err)
		}
		if len(publisher.events) != 0 {
			t.Error("no event should be published on failure")
		}
	})

	t.Run("denies clients outside the team", func(t *testing.T) {
		client := models.Actor{ID: uuid.New(), Role: models.RoleClient}
		milestoneRepo := &mockMilestoneRepo{}
		svc := newTestMilestoneService(milestoneRepo, projectRepo, nil)

		_, err := svc.Create(context.Background(), project.ID, CreateMilestoneRequest{Name: "Launch"}, client)
		if !errors.Is(err, apperrors.ErrNotAuthorized) {
			t.Errorf("err = %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("team member on the project may create", func(t *testing.T) {
		member := models.Actor{ID: uuid.New(), Role: models.RoleTeamMember}
		memberProject := testProject(manager.ID)
		memberProject.Members = []models.ProjectMember{{ProjectID: memberProject.ID, UserID: member.ID}}

		repo := &mockProjectRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Project, error) {
				return memberProject, nil
			},
		}
		milestoneRepo := &mockMilestoneRepo{
			createWithCapCheckFunc: func(ctx context.Context, m *models.Milestone) error { return nil },
		}
		svc := newTestMilestoneService(milestoneRepo, repo, nil)

		if _, err := svc.Create(context.Background(), memberProject.ID, CreateMilestoneRequest{Name: "Launch"}, member); err != nil {
			t.Errorf("Create by team member failed: %v", err)
		}
	})
}

func TestSoftDeleteMilestone(t *testing.T) {
	manager := models.Actor{ID: uuid.New(), Role: models.RoleProjectManager}
	project := testProject(manager.ID)
	milestone := &models.Milestone{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Name:      "Launch",
		Status:    models.MilestoneStatusInProgress,
	}

	projectRepo := &mockProjectRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Project, error) {
			return project, nil
		},
	}

	t.Run("manager deletes and event is published", func(t *testing.T) {
		var deletedID uuid.UUID
		milestoneRepo := &mockMilestoneRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
				return milestone, nil
			},
			softDeleteFunc: func(ctx context.Context, id, deletedBy uuid.UUID, deletedAt time.Time) error {
				deletedID = id
				return nil
			},
		}
		publisher := &recordingPublisher{}
		svc := newTestMilestoneService(milestoneRepo, projectRepo, publisher)

		if err := svc.SoftDelete(context.Background(), milestone.ID, manager); err != nil {
			t.Fatalf("SoftDelete failed: %v", err)
		}
		if deletedID != milestone.ID {
			t.Error("expected repository soft delete to be called")
		}
		if len(publisher.events) != 1 || publisher.events[0] != events.MilestoneDeleted {
			t.Errorf("published events = %v, want [%s]", publisher.events, events.MilestoneDeleted)
		}
	})

	t.Run("team lead may not delete", func(t *testing.T) {
		lead := models.Actor{ID: uuid.New(), Role: models.RoleTeamLead}
		milestoneRepo := &mockMilestoneRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
				return milestone, nil
			},
			softDeleteFunc: func(ctx context.Context, id, deletedBy uuid.UUID, deletedAt time.Time) error {
				t.Fatal("soft delete should not be reached")
				return nil
			},
		}
		svc := newTestMilestoneService(milestoneRepo, projectRepo, nil)

		if err := svc.SoftDelete(context.Background(), milestone.ID, lead); !errors.Is(err, apperrors.ErrNotAuthorized) {
			t.Errorf("err = %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("missing milestone propagates not found", func(t *testing.T) {
		milestoneRepo := &mockMilestoneRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
				return nil, apperrors.ErrNotFound
			},
		}
		svc := newTestMilestoneService(milestoneRepo, projectRepo, nil)

		if err := svc.SoftDelete(context.Background(), uuid.New(), manager); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestListActive(t *testing.T) {
	projectID := uuid.New()
	want := []*models.Milestone{
		{ID: uuid.New(), ProjectID: projectID, Name: "Design"},
		{ID: uuid.New(), ProjectID: projectID, Name: "Build"},
	}

	milestoneRepo := &mockMilestoneRepo{
		listActiveFunc: func(ctx context.Context, pid uuid.UUID) ([]*models.Milestone, error) {
			if pid != projectID {
				t.Errorf("queried project %s, want %s", pid, projectID)
			}
			return want, nil
		},
	}
	svc := newTestMilestoneService(milestoneRepo, &mockProjectRepo{}, nil)

	got, err := svc.ListActive(context.Background(), projectID)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d milestones, want 2", len(got))
	}
}

func TestGetProgressHistory(t *testing.T) {
	milestoneID := uuid.New()
	history := []models.ProgressEntry{
		{ID: uuid.New(), MilestoneID: milestoneID, Progress: 25},
		{ID: uuid.New(), MilestoneID: milestoneID, Progress: 60},
	}

	t.Run("returns entries in order", func(t *testing.T) {
		milestoneRepo := &mockMilestoneRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
				return &models.Milestone{ID: milestoneID}, nil
			},
			getHistoryFunc: func(ctx context.Context, id uuid.UUID) ([]models.ProgressEntry, error) {
				return history, nil
			},
		}
		svc := newTestMilestoneService(milestoneRepo, &mockProjectRepo{}, nil)

		got, err := svc.GetProgressHistory(context.Background(), milestoneID)
		if err != nil {
			t.Fatalf("GetProgressHistory failed: %v", err)
		}
		if len(got) != 2 || got[0].Progress != 25 || got[1].Progress != 60 {
			t.Errorf("unexpected history: %+v", got)
		}
	})

	t.Run("deleted milestone yields not found", func(t *testing.T) {
		milestoneRepo := &mockMilestoneRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
				return nil, apperrors.ErrNotFound
			},
		}
		svc := newTestMilestoneService(milestoneRepo, &mockProjectRepo{}, nil)

		if _, err := svc.GetProgressHistory(context.Background(), milestoneID); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestRecordProgressRange(t *testing.T) {
	svc := newTestMilestoneService(&mockMilestoneRepo{}, &mockProjectRepo{}, nil)

	actor := models.Actor{ID: uuid.New(), Role: models.RoleProjectManager}
	for _, v := range []int{-1, 101} {
		if _, err := svc.RecordProgress(context.Background(), uuid.New(), v, actor, ""); !errors.Is(err, apperrors.ErrInvalidProgress) {
			t.Errorf("RecordProgress(%d): err = %v, want ErrInvalidProgress", v, err)
		}
	}
}

func TestReviewDecisionValidation(t *testing.T) {
	svc := newTestMilestoneService(&mockMilestoneRepo{}, &mockProjectRepo{}, nil)

	actor := models.Actor{ID: uuid.New(), Role: models.RoleProjectManager}
	if _, err := svc.Review(context.Background(), uuid.New(), actor, models.ReviewDecision("MAYBE")); !errors.Is(err, apperrors.ErrInvalidAction) {
		t.Errorf("err = %v, want ErrInvalidAction", err)
	}
}
