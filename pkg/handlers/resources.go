package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/auth"
	"github.com/teamtrack-io/teamtrack-engine/pkg/services"
)

// UpdateResourceRequest is the request body for editing an owned
// resource.
type UpdateResourceRequest struct {
	Body string `json:"body"`
}

// ResourcesHandler handles owned-resource HTTP requests (comments,
// attachments, worklogs).
type ResourcesHandler struct {
	resourceService services.ResourceService
	logger          *zap.Logger
}

// NewResourcesHandler creates a new resources handler.
func NewResourcesHandler(resourceService services.ResourceService, logger *zap.Logger) *ResourcesHandler {
	return &ResourcesHandler{
		resourceService: resourceService,
		logger:          logger,
	}
}

// RegisterRoutes registers the resources handler's routes on the given mux.
func (h *ResourcesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(handler))
	}
	mux.HandleFunc("GET /api/projects/{pid}/resources/{rid}", wrap(h.Get))
	mux.HandleFunc("PATCH /api/projects/{pid}/resources/{rid}", wrap(h.Update))
	mux.HandleFunc("DELETE /api/projects/{pid}/resources/{rid}", wrap(h.Delete))
}

// Get handles GET /api/projects/{pid}/resources/{rid}
func (h *ResourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	resourceID, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	resource, err := h.resourceService.GetByID(r.Context(), resourceID)
	if err != nil {
		h.serviceError(w, "Failed to get resource", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, resource); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/projects/{pid}/resources/{rid}
// Creator-only; the policy engine refuses everyone else.
func (h *ResourcesHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, actor, err := auth.ExtractClaimsFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	resourceID, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	var req UpdateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	resource, err := h.resourceService.UpdateBody(r.Context(), resourceID, req.Body, actor)
	if err != nil {
		h.serviceError(w, "Failed to update resource", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, resource); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/projects/{pid}/resources/{rid}
func (h *ResourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, actor, err := auth.ExtractClaimsFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	resourceID, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	if err := h.resourceService.Delete(r.Context(), resourceID, actor); err != nil {
		h.serviceError(w, "Failed to delete resource", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ResourcesHandler) resourceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	resourceID, err := uuid.Parse(r.PathValue("rid"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_resource_id", "Invalid resource ID format")
		return uuid.Nil, false
	}
	return resourceID, true
}

func (h *ResourcesHandler) serviceError(w http.ResponseWriter, logMsg string, err error) {
	status, code := serviceErrorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(logMsg, zap.Error(err))
		message = logMsg
	}
	h.writeError(w, status, code, message)
}

func (h *ResourcesHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
