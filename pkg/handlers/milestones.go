package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/auth"
	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
	"github.com/teamtrack-io/teamtrack-engine/pkg/services"
)

// CreateMilestoneRequest is the request body for creating a milestone.
type CreateMilestoneRequest struct {
	Name           string      `json:"name"`
	DueDate        *time.Time  `json:"due_date,omitempty"`
	ProgressMethod string      `json:"progress_method,omitempty"`
	Status         string      `json:"status,omitempty"`
	AssignedUsers  []uuid.UUID `json:"assigned_users,omitempty"`
}

// UpdateMilestoneRequest is the request body for updating a milestone.
// Absent fields are left untouched.
type UpdateMilestoneRequest struct {
	Name           *string     `json:"name,omitempty"`
	DueDate        *time.Time  `json:"due_date,omitempty"`
	ProgressMethod *string     `json:"progress_method,omitempty"`
	Status         *string     `json:"status,omitempty"`
	Progress       *int        `json:"progress,omitempty"`
	AssignedUsers  []uuid.UUID `json:"assigned_users,omitempty"`
}

// ReviewRequest is the request body for reviewing a pending milestone.
type ReviewRequest struct {
	Decision string `json:"decision"`
}

// ProgressRequest is the request body for recording a progress update.
type ProgressRequest struct {
	Progress int    `json:"progress"`
	Reason   string `json:"reason,omitempty"`
}

// MilestonesHandler handles milestone lifecycle HTTP requests.
type MilestonesHandler struct {
	milestoneService services.MilestoneService
	logger           *zap.Logger
}

// NewMilestonesHandler creates a new milestones handler.
func NewMilestonesHandler(milestoneService services.MilestoneService, logger *zap.Logger) *MilestonesHandler {
	return &MilestonesHandler{
		milestoneService: milestoneService,
		logger:           logger,
	}
}

// RegisterRoutes registers the milestones handler's routes on the given mux.
func (h *MilestonesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(handler))
	}

	mux.HandleFunc("POST /api/projects/{pid}/milestones", wrap(h.Create))
	mux.HandleFunc("GET /api/projects/{pid}/milestones", wrap(h.List))
	mux.HandleFunc("GET /api/projects/{pid}/milestones/{mid}", wrap(h.Get))
	mux.HandleFunc("PATCH /api/projects/{pid}/milestones/{mid}", wrap(h.Update))
	mux.HandleFunc("DELETE /api/projects/{pid}/milestones/{mid}", wrap(h.Delete))
	mux.HandleFunc("POST /api/projects/{pid}/milestones/{mid}/request-approval", wrap(h.RequestApproval))
	mux.HandleFunc("POST /api/projects/{pid}/milestones/{mid}/review", wrap(h.Review))
	mux.HandleFunc("POST /api/projects/{pid}/milestones/{mid}/lock", wrap(h.Lock))
	mux.HandleFunc("POST /api/projects/{pid}/milestones/{mid}/unlock", wrap(h.Unlock))
	mux.HandleFunc("POST /api/projects/{pid}/milestones/{mid}/progress", wrap(h.RecordProgress))
	mux.HandleFunc("GET /api/projects/{pid}/milestones/{mid}/history", wrap(h.GetHistory))
}

// Create handles POST /api/projects/{pid}/milestones
func (h *MilestonesHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}

	var req CreateMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Milestone name is required")
		return
	}

	milestone, err := h.milestoneService.Create(r.Context(), projectID, services.CreateMilestoneRequest{
		Name:           req.Name,
		DueDate:        req.DueDate,
		ProgressMethod: models.ProgressMethod(req.ProgressMethod),
		Status:         models.MilestoneStatus(req.Status),
		AssignedUsers:  req.AssignedUsers,
	}, actor)
	if err != nil {
		h.serviceError(w, "Failed to create milestone", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, milestone); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/projects/{pid}/milestones
// Returns the project's active (non-deleted) milestones.
func (h *MilestonesHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, _, ok := h.requestActor(w, r)
	if !ok {
		return
	}

	milestones, err := h.milestoneService.ListActive(r.Context(), projectID)
	if err != nil {
		h.serviceError(w, "Failed to list milestones", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{
		"milestones": milestones,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/projects/{pid}/milestones/{mid}
func (h *MilestonesHandler) Get(w http.ResponseWriter, r *http.Request) {
	milestoneID, ok := h.milestoneID(w, r)
	if !ok {
		return
	}

	milestone, err := h.milestoneService.Get(r.Context(), milestoneID)
	if err != nil {
		h.serviceError(w, "Failed to get milestone", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, milestone); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/projects/{pid}/milestones/{mid}
func (h *MilestonesHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	milestoneID, ok := h.milestoneID(w, r)
	if !ok {
		return
	}

	var req UpdateMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	update := services.UpdateMilestoneRequest{
		Name:          req.Name,
		DueDate:       req.DueDate,
		Progress:      req.Progress,
		AssignedUsers: req.AssignedUsers,
	}
	if req.ProgressMethod != nil {
		method := models.ProgressMethod(*req.ProgressMethod)
		update.ProgressMethod = &method
	}
	if req.Status != nil {
		status := models.MilestoneStatus(*req.Status)
		update.Status = &status
	}

	milestone, err := h.milestoneService.Update(r.Context(), milestoneID, update, actor)
	if err != nil {
		h.serviceError(w, "Failed to update milestone", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, milestone); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/projects/{pid}/milestones/{mid}
// Soft-deletes the milestone; its history is retained.
func (h *MilestonesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	milestoneID, ok := h.milestoneID(w, r)
	if !ok {
		return
	}

	if err := h.milestoneService.SoftDelete(r.Context(), milestoneID, actor); err != nil {
		h.serviceError(w, "Failed to delete milestone", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestApproval handles POST /api/projects/{pid}/milestones/{mid}/request-approval
func (h *MilestonesHandler) RequestApproval(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	milestoneID, ok := h.milestoneID(w, r)
	if !ok {
		return
	}

	milestone, err := h.milestoneService.RequestApproval(r.Context(), milestoneID, actor)
	if err != nil {
		h.serviceError(w, "Failed to request approval", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, milestone); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Review handles POST /api/projects/{pid}/milestones/{mid}/review
func (h *MilestonesHandler) Review(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	milestoneID, ok := h.milestoneID(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	milestone, err := h.milestoneService.Review(r.Context(), milestoneID, actor, models.ReviewDecision(req.Decision))
	if err != nil {
		h.serviceError(w, "Failed to review milestone", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, milestone); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Lock handles POST /api/projects/{pid}/milestones/{mid}/lock
func (h *MilestonesHandler) Lock(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	milestoneID, ok := h.milestoneID(w, r)
	if !ok {
		return
	}

	milestone, err := h.milestoneService.Lock(r.Context(), milestoneID, actor)
	if err != nil {
		h.serviceError(w, "Failed to lock milestone", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, milestone); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Unlock handles POST /api/projects/{pid}/milestones/{mid}/unlock
func (h *MilestonesHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	milestoneID, ok := h.milestoneID(w, r)
	if !ok {
		return
	}

	milestone, err := h.milestoneService.Unlock(r.Context(), milestoneID, actor)
	if err != nil {
		h.serviceError(w, "Failed to unlock milestone", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, milestone); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RecordProgress handles POST /api/projects/{pid}/milestones/{mid}/progress
func (h *MilestonesHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	_, actor, ok := h.requestActor(w, r)
	if !ok {
		return
	}
	milestoneID, ok := h.milestoneID(w, r)
	if !ok {
		return
	}

	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	milestone, err := h.milestoneService.RecordProgress(r.Context(), milestoneID, req.Progress, actor, req.Reason)
	if err != nil {
		h.serviceError(w, "Failed to record progress", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, milestone); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetHistory handles GET /api/projects/{pid}/milestones/{mid}/history
// Returns the append-only progress audit trail in chronological order.
func (h *MilestonesHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	milestoneID, ok := h.milestoneID(w, r)
	if !ok {
		return
	}

	history, err := h.milestoneService.GetProgressHistory(r.Context(), milestoneID)
	if err != nil {
		h.serviceError(w, "Failed to get progress history", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// requestActor extracts the project ID and actor from JWT claims.
// Writes a 401 and returns false if the request is not authenticated.
func (h *MilestonesHandler) requestActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, models.Actor, bool) {
	projectID, actor, err := auth.ExtractClaimsFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return uuid.Nil, models.Actor{}, false
	}
	return projectID, actor, true
}

// milestoneID parses the {mid} path parameter.
func (h *MilestonesHandler) milestoneID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	milestoneID, err := uuid.Parse(r.PathValue("mid"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_milestone_id", "Invalid milestone ID format")
		return uuid.Nil, false
	}
	return milestoneID, true
}

func (h *MilestonesHandler) serviceError(w http.ResponseWriter, logMsg string, err error) {
	status, code := serviceErrorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(logMsg, zap.Error(err))
		message = logMsg
	}
	h.writeError(w, status, code, message)
}

func (h *MilestonesHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
