package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventregistration/internal/domain"
)

func TestJWTIssuer_Issue(t *testing.T) {
	secret := "test-secret"
	issuer := NewJWTIssuer(secret)

	token, err := issuer.Issue("organizer-1", "org-1", []string{"admin"}, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Parse and verify claims
	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	claims, ok := parsed.Claims.(*jwtClaims)
	require.True(t, ok)
	assert.Equal(t, "organizer-1", claims.Subject)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, []string{"admin"}, claims.Roles)

	_, err = issuer.Issue("organizer-1", "", nil, time.Hour)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestJWTVerifier_Verify(t *testing.T) {
	issuer := NewJWTIssuer("secret-a")
	valid, err := issuer.Issue("organizer-1", "org-1", []string{"admin"}, time.Hour)
	require.NoError(t, err)
	expired, err := issuer.Issue("organizer-1", "org-1", nil, -time.Minute)
	require.NoError(t, err)
	otherSecret, err := NewJWTIssuer("secret-b").Issue("organizer-1", "org-1", nil, time.Hour)
	require.NoError(t, err)
	noOrg, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret-a"))
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x"},
		OrganizationID:   "org-1",
	}).SignedString([]byte("secret-a"))
	require.NoError(t, err)

	verifier := NewJWTVerifier("secret-a")

	tests := []struct {
		name    string
		token   string
		wantErr bool
		wantOrg string
	}{
		{name: "valid", token: valid, wantOrg: "org-1"},
		{name: "expired", token: expired, wantErr: true},
		{name: "wrong secret", token: otherSecret, wantErr: true},
		{name: "missing organization", token: noOrg, wantErr: true},
		{name: "missing expiry", token: noExpiry, wantErr: true},
		{name: "garbage", token: "not-a-jwt", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := verifier.Verify(tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrg, claims.OrganizationID)
			assert.Equal(t, "organizer-1", claims.Subject)
			assert.Equal(t, []string{"admin"}, claims.Roles)
		})
	}
}
