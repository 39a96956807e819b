package models

import (
	"time"

	"github.com/google/uuid"
)

// Issue represents a reported issue within a project. Only its delete
// policy is role-sensitive; the reporter and the project manager may
// delete it, admins may not.
type Issue struct {
	ID         uuid.UUID `json:"id"`
	ProjectID  uuid.UUID `json:"project_id"`
	ReporterID uuid.UUID `json:"reporter_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
