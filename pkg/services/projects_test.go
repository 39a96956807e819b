package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/apperrors"
	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

func newTestProjectService(repo *mockProjectRepo) ProjectService {
	return NewProjectService(repo, authz.NewEngine(), zap.NewNop())
}

func TestCreateProject(t *testing.T) {
	t.Run("manager role creates and becomes manager by default", func(t *testing.T) {
		var created *models.Project
		repo := &mockProjectRepo{
			createFunc: func(ctx context.Context, project *models.Project) error {
				created = project
				return nil
			},
		}
		svc := newTestProjectService(repo)

		actor := models.Actor{ID: uuid.New(), Role: models.RoleProjectManager}
		id := uuid.New()
		project, err := svc.Create(context.Background(), CreateProjectRequest{ID: id, Name: "CRM Rollout"}, actor)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if project.ID != id {
			t.Errorf("project ID = %s, want %s", project.ID, id)
		}
		if project.ManagerID != actor.ID {
			t.Errorf("manager = %s, want the creating actor %s", project.ManagerID, actor.ID)
		}
		if project.CreatedBy != actor.ID {
			t.Errorf("created_by = %s, want %s", project.CreatedBy, actor.ID)
		}
		if created == nil {
			t.Fatal("expected repository create to be called")
		}
	})

	t.Run("explicit manager is kept", func(t *testing.T) {
		svc := newTestProjectService(&mockProjectRepo{})
		actor := models.Actor{ID: uuid.New(), Role: models.RoleProjectAdmin}
		managerID := uuid.New()
		project, err := svc.Create(context.Background(), CreateProjectRequest{Name: "Audit", ManagerID: managerID}, actor)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if project.ManagerID != managerID {
			t.Errorf("manager = %s, want %s", project.ManagerID, managerID)
		}
	})

	t.Run("client cannot create", func(t *testing.T) {
		svc := newTestProjectService(&mockProjectRepo{})
		actor := models.Actor{ID: uuid.New(), Role: models.RoleClient}
		if _, err := svc.Create(context.Background(), CreateProjectRequest{Name: "Nope"}, actor); !errors.Is(err, apperrors.ErrNotAuthorized) {
			t.Errorf("err = %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("team member cannot create", func(t *testing.T) {
		svc := newTestProjectService(&mockProjectRepo{})
		actor := models.Actor{ID: uuid.New(), Role: models.RoleTeamMember}
		if _, err := svc.Create(context.Background(), CreateProjectRequest{Name: "Nope"}, actor); !errors.Is(err, apperrors.ErrNotAuthorized) {
			t.Errorf("err = %v, want ErrNotAuthorized", err)
		}
	})
}

func TestUpdateProject(t *testing.T) {
	manager := models.Actor{ID: uuid.New(), Role: models.RoleTeamLead}
	project := testProject(manager.ID)

	newRepo := func(updated **models.Project) *mockProjectRepo {
		return &mockProjectRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Project, error) {
				copied := *project
				return &copied, nil
			},
			updateFunc: func(ctx context.Context, p *models.Project) error {
				if updated != nil {
					*updated = p
				}
				return nil
			},
		}
	}

	t.Run("assigned manager renames via relationship fact", func(t *testing.T) {
		var updated *models.Project
		svc := newTestProjectService(newRepo(&updated))

		name := "Website Redesign v2"
		got, err := svc.Update(context.Background(), project.ID, UpdateProjectRequest{Name: &name}, manager)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.Name != name {
			t.Errorf("name = %q, want %q", got.Name, name)
		}
		if updated == nil {
			t.Fatal("expected repository update to be called")
		}
	})

	t.Run("nil fields are left untouched", func(t *testing.T) {
		svc := newTestProjectService(newRepo(nil))
		got, err := svc.Update(context.Background(), project.ID, UpdateProjectRequest{}, manager)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.Name != project.Name || got.ManagerID != project.ManagerID {
			t.Errorf("project changed unexpectedly: %+v", got)
		}
	})

	t.Run("team member cannot update", func(t *testing.T) {
		svc := newTestProjectService(newRepo(nil))
		member := models.Actor{ID: uuid.New(), Role: models.RoleTeamMember}
		name := "Hijack"
		if _, err := svc.Update(context.Background(), project.ID, UpdateProjectRequest{Name: &name}, member); !errors.Is(err, apperrors.ErrNotAuthorized) {
			t.Errorf("err = %v, want ErrNotAuthorized", err)
		}
	})
}

func TestProjectMembers(t *testing.T) {
	manager := models.Actor{ID: uuid.New(), Role: models.RoleProjectManager}
	project := testProject(manager.ID)

	t.Run("manager adds member with role label", func(t *testing.T) {
		var added *models.ProjectMember
		repo := &mockProjectRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Project, error) {
				return project, nil
			},
			addMemberFunc: func(ctx context.Context, member *models.ProjectMember) error {
				added = member
				return nil
			},
		}
		svc := newTestProjectService(repo)

		userID := uuid.New()
		if err := svc.AddMember(context.Background(), project.ID, userID, "designer", manager); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
		if added == nil {
			t.Fatal("expected repository add to be called")
		}
		if added.UserID != userID || added.RoleLabel != "designer" {
			t.Errorf("member = %+v", added)
		}
	})

	t.Run("client cannot manage membership", func(t *testing.T) {
		repo := &mockProjectRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Project, error) {
				return project, nil
			},
		}
		svc := newTestProjectService(repo)

		client := models.Actor{ID: uuid.New(), Role: models.RoleClient}
		if err := svc.AddMember(context.Background(), project.ID, uuid.New(), "observer", client); !errors.Is(err, apperrors.ErrNotAuthorized) {
			t.Errorf("AddMember err = %v, want ErrNotAuthorized", err)
		}
		if err := svc.RemoveMember(context.Background(), project.ID, uuid.New(), client); !errors.Is(err, apperrors.ErrNotAuthorized) {
			t.Errorf("RemoveMember err = %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("missing project propagates not found", func(t *testing.T) {
		repo := &mockProjectRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Project, error) {
				return nil, apperrors.ErrNotFound
			},
		}
		svc := newTestProjectService(repo)
		if err := svc.AddMember(context.Background(), uuid.New(), uuid.New(), "designer", manager); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}
