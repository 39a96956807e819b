// Package models contains domain types for teamtrack-engine.
package models

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the global role an actor carries for the duration of a request.
// Roles form a closed enumeration; free-form role strings from tokens are
// parsed through ParseRole and anything unrecognized is treated as
// least-privileged.
type Role string

// Global roles, highest to lowest privilege.
const (
	RoleSuperAdmin     Role = "super_admin"
	RoleProjectAdmin   Role = "project_admin"
	RoleProjectManager Role = "project_manager"
	RoleTeamLead       Role = "team_lead"
	RoleTeamMember     Role = "team_member"
	RoleClient         Role = "client"
)

// ValidRoles contains all valid role values.
var ValidRoles = []Role{
	RoleSuperAdmin,
	RoleProjectAdmin,
	RoleProjectManager,
	RoleTeamLead,
	RoleTeamMember,
	RoleClient,
}

// ParseRole maps a role string to its canonical Role. Comparison is
// case-insensitive. The boolean reports whether the string named a known
// role; an unknown role parses to the empty Role and authorizes as
// least-privileged.
func ParseRole(s string) (Role, bool) {
	candidate := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, r := range ValidRoles {
		if r == candidate {
			return r, true
		}
	}
	return "", false
}

// IsValidRole checks if the given role is valid.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if v == r {
			return true
		}
	}
	return false
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
