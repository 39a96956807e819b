package models

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind identifies a user-owned resource attached to a project.
type ResourceKind string

const (
	ResourceKindComment  ResourceKind = "comment"
	ResourceKindMessage  ResourceKind = "message"
	ResourceKindFile     ResourceKind = "file"
	ResourceKindDocument ResourceKind = "document"
)

// IsValidResourceKind checks if the given kind is valid.
func IsValidResourceKind(k ResourceKind) bool {
	switch k {
	case ResourceKindComment, ResourceKindMessage, ResourceKindFile, ResourceKindDocument:
		return true
	default:
		return false
	}
}

// OwnedResource is the common shape of resources governed by the
// "own resource" policy rule: the creator (uploader, sender) may edit or
// delete it, everyone else may not.
type OwnedResource struct {
	ID        uuid.UUID    `json:"id"`
	ProjectID uuid.UUID    `json:"project_id"`
	Kind      ResourceKind `json:"kind"`
	CreatedBy uuid.UUID    `json:"created_by"`
	Body      string       `json:"body,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
