package auth

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// CookieName is the name of the session cookie carrying the JWT.
const CookieName = "teamtrack_jwt"

// Service handles authentication operations.
type Service struct {
	jwksClient      *JWKSClient
	logger          *zap.Logger
	verifySignature bool
}

// NewService creates a new auth service. When verifySignature is false
// tokens are parsed without signature checks; this is only acceptable
// for local development.
func NewService(jwksClient *JWKSClient, logger *zap.Logger, verifySignature bool) *Service {
	return &Service{
		jwksClient:      jwksClient,
		logger:          logger,
		verifySignature: verifySignature,
	}
}

// ValidateRequest extracts and validates the JWT from an HTTP request.
// It checks the session cookie first, then the Authorization header.
// Returns the validated claims and the raw token string.
func (s *Service) ValidateRequest(r *http.Request) (*Claims, string, error) {
	tokenString := s.extractToken(r)
	if tokenString == "" {
		return nil, "", fmt.Errorf("no authentication token provided")
	}

	if !s.verifySignature {
		s.logger.Warn("JWT signature verification is disabled")
		claims, err := parseUnverifiedToken(tokenString)
		if err != nil {
			return nil, "", err
		}
		return claims, tokenString, nil
	}

	if s.jwksClient == nil {
		return nil, "", fmt.Errorf("JWKS client not configured")
	}

	claims, err := s.jwksClient.ValidateToken(tokenString)
	if err != nil {
		return nil, "", err
	}

	return claims, tokenString, nil
}

// extractToken retrieves the JWT from the cookie or Authorization
// header, in that order.
func (s *Service) extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
