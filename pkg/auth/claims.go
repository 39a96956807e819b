// Package auth provides JWT-based authentication for teamtrack-engine.
// It validates tokens issued by the identity service using JWKS
// endpoints. Password hashing and session issuance live with the
// identity service; this package only consumes its tokens.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teamtrack-io/teamtrack-engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims structure from the identity service.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp,
// etc.) and adds custom claims for project context.
type Claims struct {
	jwt.RegisteredClaims
	ProjectID string `json:"pid,omitempty"`   // Project UUID
	Email     string `json:"email,omitempty"` // User email address
	Role      string `json:"role,omitempty"`  // Global role
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// Actor builds the request actor from the claims. The role string is
// parsed case-insensitively; an unrecognized role yields an actor with
// no role, which the policy engine treats as least-privileged.
func (c *Claims) Actor() (models.Actor, error) {
	if c.Subject == "" {
		return models.Actor{}, fmt.Errorf("missing user ID in JWT claims")
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return models.Actor{}, fmt.Errorf("invalid user ID format: %w", err)
	}

	role, _ := models.ParseRole(c.Role)
	return models.Actor{ID: userID, Role: role}, nil
}

// ExtractClaimsFromContext extracts project ID and actor from JWT claims
// in context. Returns an error if not authenticated or claims are
// invalid.
func ExtractClaimsFromContext(ctx context.Context) (uuid.UUID, models.Actor, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil, models.Actor{}, fmt.Errorf("authentication required: no claims in context")
	}

	if claims.ProjectID == "" {
		return uuid.Nil, models.Actor{}, fmt.Errorf("missing project ID in JWT claims")
	}

	projectID, err := uuid.Parse(claims.ProjectID)
	if err != nil {
		return uuid.Nil, models.Actor{}, fmt.Errorf("invalid project ID format: %w", err)
	}

	actor, err := claims.Actor()
	if err != nil {
		return uuid.Nil, models.Actor{}, err
	}

	return projectID, actor, nil
}
