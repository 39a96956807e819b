package models

import (
	"time"

	"github.com/google/uuid"
)

// Project represents a project in the system. The manager is referenced
// directly and need not appear in Members.
type Project struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	ManagerID uuid.UUID       `json:"manager_id"`
	CreatedBy uuid.UUID       `json:"created_by"`
	Members   []ProjectMember `json:"members,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ProjectMember is a user's membership in a project, tagged with a
// project-local role label such as "Team Lead" or "Developer". The label
// is descriptive; authorization decisions use membership itself plus the
// actor's global role.
type ProjectMember struct {
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
	RoleLabel string    `json:"role_label"`
	CreatedAt time.Time `json:"created_at"`
}

// IsManager reports whether the given user is the project's manager.
func (p *Project) IsManager(userID uuid.UUID) bool {
	return p.ManagerID != uuid.Nil && p.ManagerID == userID
}

// HasMember reports whether the given user is on the project team.
func (p *Project) HasMember(userID uuid.UUID) bool {
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
