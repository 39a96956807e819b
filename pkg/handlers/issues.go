package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/auth"
	"github.com/teamtrack-io/teamtrack-engine/pkg/services"
)

// IssuesHandler handles issue-related HTTP requests.
type IssuesHandler struct {
	issueService services.IssueService
	logger       *zap.Logger
}

// NewIssuesHandler creates a new issues handler.
func NewIssuesHandler(issueService services.IssueService, logger *zap.Logger) *IssuesHandler {
	return &IssuesHandler{
		issueService: issueService,
		logger:       logger,
	}
}

// RegisterRoutes registers the issues handler's routes on the given mux.
func (h *IssuesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("pid")(tenantMiddleware(handler))
	}
	mux.HandleFunc("GET /api/projects/{pid}/issues/{iid}", wrap(h.Get))
	mux.HandleFunc("DELETE /api/projects/{pid}/issues/{iid}", wrap(h.Delete))
}

// Get handles GET /api/projects/{pid}/issues/{iid}
func (h *IssuesHandler) Get(w http.ResponseWriter, r *http.Request) {
	issueID, ok := h.issueID(w, r)
	if !ok {
		return
	}

	issue, err := h.issueService.GetByID(r.Context(), issueID)
	if err != nil {
		h.serviceError(w, "Failed to get issue", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, issue); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/projects/{pid}/issues/{iid}
// Issue deletion is reporter-or-manager only; even super admins are
// refused.
func (h *IssuesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, actor, err := auth.ExtractClaimsFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	issueID, ok := h.issueID(w, r)
	if !ok {
		return
	}

	if err := h.issueService.Delete(r.Context(), issueID, actor); err != nil {
		h.serviceError(w, "Failed to delete issue", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *IssuesHandler) issueID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	issueID, err := uuid.Parse(r.PathValue("iid"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_issue_id", "Invalid issue ID format")
		return uuid.Nil, false
	}
	return issueID, true
}

func (h *IssuesHandler) serviceError(w http.ResponseWriter, logMsg string, err error) {
	status, code := serviceErrorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(logMsg, zap.Error(err))
		message = logMsg
	}
	h.writeError(w, status, code, message)
}

func (h *IssuesHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
