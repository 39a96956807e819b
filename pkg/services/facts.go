package services

import (
	"github.com/google/uuid"

	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// Relationship facts are computed once per request from the resolved
// entities, then handed to the authorization engine. The engine never
// sees entity graphs, which keeps the policy pure and testable without a
// datastore.

// projectFacts derives the facts an actor has against a project.
func projectFacts(project *models.Project, actor models.Actor) authz.Facts {
	return authz.Facts{
		IsProjectManager: project.IsManager(actor.ID),
		IsTeamMember:     project.HasMember(actor.ID),
	}
}

// milestoneFacts derives the facts an actor has against a milestone and
// its owning project.
func milestoneFacts(project *models.Project, milestone *models.Milestone, actor models.Actor) authz.Facts {
	facts := projectFacts(project, actor)
	facts.IsCreator = milestone.CreatedBy == actor.ID
	facts.IsMilestoneLockHolder = milestone.IsLockHolder(actor.ID)
	return facts
}

// creatorFacts derives the facts an actor has against a project-scoped
// resource with a known creator (issue reporter, comment author, file
// uploader, message sender).
func creatorFacts(project *models.Project, createdBy uuid.UUID, actor models.Actor) authz.Facts {
	facts := projectFacts(project, actor)
	facts.IsCreator = createdBy == actor.ID
	return facts
}
