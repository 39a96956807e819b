package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/auth"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
	"github.com/teamtrack-io/teamtrack-engine/pkg/services"
)

// TenantMiddleware is a function that wraps a handler with tenant context.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// CreateProjectRequest is the request body for provisioning a project.
type CreateProjectRequest struct {
	Name      string     `json:"name"`
	ManagerID *uuid.UUID `json:"manager_id,omitempty"`
}

// UpdateProjectRequest is the request body for updating a project.
// Absent fields are left untouched.
type UpdateProjectRequest struct {
	Name      *string    `json:"name,omitempty"`
	ManagerID *uuid.UUID `json:"manager_id,omitempty"`
}

// AddMemberRequest is the request body for adding a team member.
type AddMemberRequest struct {
	UserID    uuid.UUID `json:"user_id"`
	RoleLabel string    `json:"role_label,omitempty"`
}

// ProjectsHandler handles project-related HTTP requests.
type ProjectsHandler struct {
	projectService services.ProjectService
	logger         *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projectService services.ProjectService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
// Project provisioning uses the project ID from the token claim rather
// than the path, so it only needs the tenant middleware.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST /api/projects", authMiddleware.RequireAuth(tenantMiddleware(h.Create)))

	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(handler))
	}
	mux.HandleFunc("GET /api/projects/{pid}", wrap(h.Get))
	mux.HandleFunc("PATCH /api/projects/{pid}", wrap(h.Update))
	mux.HandleFunc("DELETE /api/projects/{pid}", wrap(h.Delete))
	mux.HandleFunc("POST /api/projects/{pid}/members", wrap(h.AddMember))
	mux.HandleFunc("DELETE /api/projects/{pid}/members/{uid}", wrap(h.RemoveMember))
}

// Create handles POST /api/projects
// Provisions the project identified by the token's project claim.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Project name is required")
		return
	}

	create := services.CreateProjectRequest{
		ID:   projectID,
		Name: req.Name,
	}
	if req.ManagerID != nil {
		create.ManagerID = *req.ManagerID
	}

	project, err := h.projectService.Create(r.Context(), create, actor)
	if err != nil {
		h.serviceError(w, "Failed to create project", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/projects/{pid}
// Returns the project with its team members.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(r.Context(), projectID)
	if err != nil {
		h.serviceError(w, "Failed to get project", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/projects/{pid}
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	project, err := h.projectService.Update(r.Context(), projectID, services.UpdateProjectRequest{
		Name:      req.Name,
		ManagerID: req.ManagerID,
	}, actor)
	if err != nil {
		h.serviceError(w, "Failed to update project", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/projects/{pid}
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	if err := h.projectService.Delete(r.Context(), projectID, actor); err != nil {
		h.serviceError(w, "Failed to delete project", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddMember handles POST /api/projects/{pid}/members
func (h *ProjectsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	if err := h.projectService.AddMember(r.Context(), projectID, req.UserID, req.RoleLabel, actor); err != nil {
		h.serviceError(w, "Failed to add project member", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/projects/{pid}/members/{uid}
func (h *ProjectsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	userID, err := uuid.Parse(r.PathValue("uid"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID format")
		return
	}

	if err := h.projectService.RemoveMember(r.Context(), projectID, userID, actor); err != nil {
		h.serviceError(w, "Failed to remove project member", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectsHandler) requestActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, models.Actor, bool) {
	projectID, actor, err := auth.ExtractClaimsFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return uuid.Nil, models.Actor{}, false
	}
	return projectID, actor, true
}

func (h *ProjectsHandler) projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(r.PathValue("pid"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_project_id", "Invalid project ID format")
		return uuid.Nil, false
	}
	return projectID, true
}

func (h *ProjectsHandler) serviceError(w http.ResponseWriter, logMsg string, err error) {
	status, code := serviceErrorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(logMsg, zap.Error(err))
		message = logMsg
	}
	h.writeError(w, status, code, message)
}

func (h *ProjectsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
