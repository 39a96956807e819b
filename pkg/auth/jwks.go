package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWKSClient manages JWKS fetching and JWT validation.
type JWKSClient struct {
	keyfunc keyfunc.Keyfunc
	issuer  string
}

// NewJWKSClient creates a new JWKS client that fetches keys from the
// given URL. Keys are refreshed in the background by keyfunc.
func NewJWKSClient(ctx context.Context, jwksURL, issuer string) (*JWKSClient, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("JWKS URL is required")
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}

	return &JWKSClient{keyfunc: kf, issuer: issuer}, nil
}

// ValidateToken parses and validates a JWT using the JWKS keys.
// Returns the validated claims or an error.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, c.keyfunc.Keyfunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	return claims, nil
}

// parseUnverifiedToken parses a JWT without verifying its signature.
// Only used when signature verification is disabled for local
// development.
func parseUnverifiedToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}
