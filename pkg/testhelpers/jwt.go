// Package testhelpers provides utilities for testing teamtrack-engine
// components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
)

// GenerateTestJWT creates a test JWT token for use when verification is
// disabled. The token has a valid structure but no signature (alg: none).
// This is useful for testing auth flows without needing real JWKS
// validation.
func GenerateTestJWT(sub, projectID, role string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, sub)
	if projectID != "" {
		payload += fmt.Sprintf(`,"pid":"%s"`, projectID)
	}
	if role != "" {
		payload += fmt.Sprintf(`,"role":"%s"`, role)
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns a token with "Bearer " prefix for
// the Authorization header.
func GenerateTestJWTWithBearer(sub, projectID, role string) string {
	return "Bearer " + GenerateTestJWT(sub, projectID, role)
}
