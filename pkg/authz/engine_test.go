package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

func TestAuthorize_SuperAdmin(t *testing.T) {
	engine := NewEngine()

	allowed := []Action{
		ActionProjectCreate, ActionProjectUpdate, ActionProjectDelete,
		ActionMilestoneCreate, ActionMilestoneUpdate, ActionMilestoneDelete,
		ActionMilestoneReview, ActionMilestoneRequestApproval,
		ActionOwnResourceEdit, ActionOwnResourceDelete,
	}
	for _, action := range allowed {
		d := engine.Authorize(models.RoleSuperAdmin, action, Facts{})
		assert.True(t, d.Allowed, "super_admin should be allowed %s", action)
	}

	// The one carve-out: issue deletion belongs to the reporter or the
	// project manager and is refused even to super admins.
	d := engine.Authorize(models.RoleSuperAdmin, ActionIssueDelete, Facts{})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoleRestricted, d.Reason)
}

func TestAuthorize_ProjectManagement(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name    string
		role    models.Role
		facts   Facts
		allowed bool
	}{
		{"project admin", models.RoleProjectAdmin, Facts{}, true},
		{"project manager role", models.RoleProjectManager, Facts{}, true},
		{"team lead without management", models.RoleTeamLead, Facts{}, false},
		{"team member who manages this project", models.RoleTeamMember, Facts{IsProjectManager: true}, true},
		{"team member", models.RoleTeamMember, Facts{}, false},
		{"client", models.RoleClient, Facts{}, false},
		{"unknown role", models.Role(""), Facts{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, action := range []Action{ActionProjectCreate, ActionProjectUpdate, ActionProjectDelete} {
				d := engine.Authorize(tt.role, action, tt.facts)
				assert.Equal(t, tt.allowed, d.Allowed, "action %s", action)
			}
		})
	}
}

func TestAuthorize_MilestoneMutation(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name    string
		role    models.Role
		facts   Facts
		allowed bool
	}{
		{"project admin", models.RoleProjectAdmin, Facts{}, true},
		{"project manager", models.RoleProjectManager, Facts{}, true},
		{"team lead", models.RoleTeamLead, Facts{}, true},
		{"team member on the project", models.RoleTeamMember, Facts{IsTeamMember: true}, true},
		{"team member elsewhere", models.RoleTeamMember, Facts{}, false},
		{"client on the team", models.RoleClient, Facts{IsTeamMember: true}, true},
		{"client", models.RoleClient, Facts{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, action := range []Action{ActionMilestoneCreate, ActionMilestoneUpdate, ActionMilestoneRequestApproval} {
				d := engine.Authorize(tt.role, action, tt.facts)
				assert.Equal(t, tt.allowed, d.Allowed, "action %s", action)
			}
		})
	}
}

func TestAuthorize_MilestoneDeleteAndReview(t *testing.T) {
	engine := NewEngine()

	for _, action := range []Action{ActionMilestoneDelete, ActionMilestoneReview} {
		assert.True(t, engine.Authorize(models.RoleProjectAdmin, action, Facts{}).Allowed)
		assert.True(t, engine.Authorize(models.RoleProjectManager, action, Facts{}).Allowed)
		// Team membership is not enough for delete or review.
		assert.False(t, engine.Authorize(models.RoleTeamLead, action, Facts{IsTeamMember: true}).Allowed)
		assert.False(t, engine.Authorize(models.RoleTeamMember, action, Facts{IsTeamMember: true}).Allowed)
	}
}

func TestAuthorize_IssueDelete(t *testing.T) {
	engine := NewEngine()

	// Reporter may delete their own issue regardless of role.
	d := engine.Authorize(models.RoleTeamMember, ActionIssueDelete, Facts{IsCreator: true})
	assert.True(t, d.Allowed)

	// The managing user of the project may delete any issue in it.
	d = engine.Authorize(models.RoleTeamLead, ActionIssueDelete, Facts{IsProjectManager: true})
	assert.True(t, d.Allowed)

	d = engine.Authorize(models.RoleProjectManager, ActionIssueDelete, Facts{})
	assert.True(t, d.Allowed)

	// Project admins are restricted even when they reported the issue.
	d = engine.Authorize(models.RoleProjectAdmin, ActionIssueDelete, Facts{IsCreator: true})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoleRestricted, d.Reason)

	d = engine.Authorize(models.RoleTeamMember, ActionIssueDelete, Facts{})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotAuthorized, d.Reason)
}

func TestAuthorize_OwnResources(t *testing.T) {
	engine := NewEngine()

	for _, action := range []Action{ActionOwnResourceEdit, ActionOwnResourceDelete} {
		assert.True(t, engine.Authorize(models.RoleClient, action, Facts{IsCreator: true}).Allowed)
		// Managers do not inherit edit rights over others' comments.
		assert.False(t, engine.Authorize(models.RoleProjectManager, action, Facts{}).Allowed)
		assert.False(t, engine.Authorize(models.RoleProjectAdmin, action, Facts{}).Allowed)
	}
}

func TestAuthorize_UnknownActionDenied(t *testing.T) {
	engine := NewEngine()

	d := engine.Authorize(models.RoleProjectManager, Action("milestone:archive"), Facts{})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotAuthorized, d.Reason)
}

func TestCanBypassLock(t *testing.T) {
	assert.True(t, CanBypassLock(models.RoleSuperAdmin, Facts{}))
	assert.True(t, CanBypassLock(models.RoleTeamMember, Facts{IsMilestoneLockHolder: true}))
	assert.False(t, CanBypassLock(models.RoleProjectAdmin, Facts{}))
	assert.False(t, CanBypassLock(models.RoleProjectManager, Facts{}))
}
