// Package authz contains the authorization engine: a pure decision
// function over (actor role, action, relationship facts). The caller
// resolves the resource and its project, derives the facts, and asks for
// a decision; the engine performs no I/O of its own.
package authz

import (
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// Action identifies an operation subject to authorization.
type Action string

const (
	ActionProjectCreate Action = "project:create"
	ActionProjectUpdate Action = "project:update"
	ActionProjectDelete Action = "project:delete"

	ActionMilestoneCreate          Action = "milestone:create"
	ActionMilestoneUpdate          Action = "milestone:update"
	ActionMilestoneDelete          Action = "milestone:delete"
	ActionMilestoneReview          Action = "milestone:review"
	ActionMilestoneRequestApproval Action = "milestone:request_approval"

	ActionIssueDelete Action = "issue:delete"

	ActionOwnResourceEdit   Action = "resource:edit_own"
	ActionOwnResourceDelete Action = "resource:delete_own"
)

// Facts are the relationship predicates the engine needs beyond the
// actor's global role. They are derived per request from the resolved
// project and resource, never stored.
type Facts struct {
	IsProjectManager      bool
	IsTeamMember          bool
	IsCreator             bool
	IsMilestoneLockHolder bool
}

// DenyReason is a machine-checkable reason code carried on a deny
// decision so the caller can map to the correct error without re-deriving
// policy.
type DenyReason string

const (
	// ReasonNotAuthorized: the actor lacks the role or relationship the
	// action requires.
	ReasonNotAuthorized DenyReason = "NOT_AUTHORIZED"
	// ReasonRoleRestricted: the actor's role is explicitly forbidden for
	// the action regardless of relationship.
	ReasonRoleRestricted DenyReason = "ROLE_RESTRICTED"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with the given reason code.
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Engine decides whether an operation proceeds. Implementations must be
// stateless, deterministic, and side-effect-free: the same inputs always
// yield the same decision.
type Engine interface {
	Authorize(role models.Role, action Action, facts Facts) Decision
}

type policyEngine struct{}

// NewEngine creates the policy-table authorization engine.
func NewEngine() Engine {
	return &policyEngine{}
}

// Authorize evaluates the policy table in order; the first matching rule
// wins. An unrecognized role matches no role rule and falls through to
// the default deny unless a relationship fact allows it explicitly.
func (e *policyEngine) Authorize(role models.Role, action Action, facts Facts) Decision {
	// Rule 1: super admin is allowed everything except deleting an issue.
	// The issue-delete restriction is intentional business policy carried
	// over from the source system, not an oversight.
	if role == models.RoleSuperAdmin {
		if action == ActionIssueDelete {
			return Deny(ReasonRoleRestricted)
		}
		return Allow()
	}

	switch action {
	// Rule 2: project management.
	case ActionProjectCreate, ActionProjectUpdate, ActionProjectDelete:
		if role == models.RoleProjectAdmin || role == models.RoleProjectManager || facts.IsProjectManager {
			return Allow()
		}
		return Deny(ReasonNotAuthorized)

	// Rules 3 and 5: milestone create/update, and request-approval for
	// anyone who holds create/update rights on the milestone.
	case ActionMilestoneCreate, ActionMilestoneUpdate, ActionMilestoneRequestApproval:
		if role == models.RoleProjectAdmin || role == models.RoleProjectManager || role == models.RoleTeamLead {
			return Allow()
		}
		if facts.IsProjectManager || facts.IsTeamMember {
			return Allow()
		}
		return Deny(ReasonNotAuthorized)

	// Rule 4: milestone delete and review are reserved for admin and
	// manager roles.
	case ActionMilestoneDelete, ActionMilestoneReview:
		if role == models.RoleProjectAdmin || role == models.RoleProjectManager {
			return Allow()
		}
		return Deny(ReasonNotAuthorized)

	// Rule 6: issue delete belongs to the reporter or the project
	// manager. Project admins are explicitly restricted, regardless of
	// any relationship to the issue.
	case ActionIssueDelete:
		if role == models.RoleProjectAdmin {
			return Deny(ReasonRoleRestricted)
		}
		if role == models.RoleProjectManager || facts.IsProjectManager || facts.IsCreator {
			return Allow()
		}
		return Deny(ReasonNotAuthorized)

	// Rule 7: own-resource actions belong to the creator. Super admin
	// already passed via rule 1.
	case ActionOwnResourceEdit, ActionOwnResourceDelete:
		if facts.IsCreator {
			return Allow()
		}
		return Deny(ReasonNotAuthorized)
	}

	// Rule 8: default deny.
	return Deny(ReasonNotAuthorized)
}

// CanBypassLock reports whether an actor may mutate a locked milestone:
// only the lock holder and the super admin.
func CanBypassLock(role models.Role, facts Facts) bool {
	return role == models.RoleSuperAdmin || facts.IsMilestoneLockHolder
}

// Ensure policyEngine implements Engine at compile time.
var _ Engine = (*policyEngine)(nil)
