package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// Middleware provides HTTP middleware for authentication.
type Middleware struct {
	service *Service
	logger  *zap.Logger
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(service *Service, logger *zap.Logger) *Middleware {
	return &Middleware{service: service, logger: logger}
}

// RequireAuth validates the JWT and stores claims in the request
// context. Requests without a valid token get 401.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.service.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("Authentication failed",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.unauthorized(w, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = context.WithValue(ctx, TokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

// RequireAuthWithPathValidation validates the JWT and verifies that the
// project ID in the URL path matches the pid claim. This prevents a
// token scoped to one project from touching another project's
// resources.
func (m *Middleware) RequireAuthWithPathValidation(pathParamName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				m.unauthorized(w, "Authentication required")
				return
			}

			pathProjectID := r.PathValue(pathParamName)
			if pathProjectID == "" {
				m.badRequest(w, "Missing project ID in path")
				return
			}

			if _, err := uuid.Parse(pathProjectID); err != nil {
				m.badRequest(w, "Invalid project ID format")
				return
			}

			if claims.ProjectID != pathProjectID {
				m.logger.Warn("Project ID mismatch",
					zap.String("path_project_id", pathProjectID),
					zap.String("token_project_id", claims.ProjectID))
				m.forbidden(w, "Token not valid for this project")
				return
			}

			next(w, r)
		})
	}
}

// RequireRole restricts a handler to actors holding one of the given
// roles. The role claim is parsed case-insensitively; unknown roles are
// rejected.
func (m *Middleware) RequireRole(roles ...models.Role) func(http.HandlerFunc) http.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				m.unauthorized(w, "Authentication required")
				return
			}

			role, valid := models.ParseRole(claims.Role)
			if !valid {
				m.forbidden(w, "Insufficient permissions")
				return
			}
			if _, ok := allowed[role]; !ok {
				m.forbidden(w, "Insufficient permissions")
				return
			}

			next(w, r)
		}
	}
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	m.writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

func (m *Middleware) badRequest(w http.ResponseWriter, message string) {
	m.writeError(w, http.StatusBadRequest, "bad_request", message)
}

func (m *Middleware) forbidden(w http.ResponseWriter, message string) {
	m.writeError(w, http.StatusForbidden, "forbidden", message)
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	}); err != nil {
		m.logger.Error("Failed to write error response", zap.Error(err))
	}
}
