package domain

import "time"

// TokenIssuer issues tokens (e.g. JWT) for an organizer.
type TokenIssuer interface {
	Issue(subject, organizationID string, roles []string, expiry time.Duration) (string, error)
}

// TokenClaims are the verified claims of an organizer token.
type TokenClaims struct {
	Subject        string
	OrganizationID string
	Roles          []string
}

// TokenVerifier verifies a token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*TokenClaims, error)
}
