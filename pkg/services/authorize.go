package services

import (
	"github.com/teamtrack-io/teamtrack-engine/pkg/apperrors"
	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/metrics"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// authorize consults the policy engine and maps a deny to the matching
// sentinel error. Every decision is counted, allow or deny.
func authorize(engine authz.Engine, action authz.Action, actor models.Actor, facts authz.Facts) error {
	decision := engine.Authorize(actor.Role, action, facts)
	metrics.AuthzDecisions.WithLabelValues(string(action), metrics.DecisionOutcome(decision.Allowed)).Inc()

	if decision.Allowed {
		return nil
	}
	if decision.Reason == authz.ReasonRoleRestricted {
		return apperrors.ErrRoleRestricted
	}
	return apperrors.ErrNotAuthorized
}
