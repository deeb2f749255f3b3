package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasai/lukas/internal/config"
)

func testVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.Config{Auth: config.AuthConfig{
		JWTSecret:   "test-secret",
		JWTAudience: "authenticated",
	}})
	require.NoError(t, err)
	return v
}

func TestVerifyRoundTrip(t *testing.T) {
	v := testVerifier(t)
	userID := uuid.New()

	token, err := v.Issue(Principal{UserID: userID, Role: RoleAdmin}, time.Minute)
	require.NoError(t, err)

	p, err := v.Verify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, RoleAdmin, p.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := testVerifier(t)
	other := &Verifier{secret: []byte("other"), audience: "authenticated"}

	token, err := other.Issue(Principal{UserID: uuid.New(), Role: RoleUser}, time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := testVerifier(t)
	token, err := v.Issue(Principal{UserID: uuid.New(), Role: RoleUser}, -time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	v := testVerifier(t)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		Audience:  jwt.ClaimStrings{"authenticated"},
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingToken(t *testing.T) {
	_, err := testVerifier(t).Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleService, ParseRole("service_role"))
	assert.Equal(t, RoleAdmin, ParseRole("ADMIN"))
	assert.Equal(t, RoleUser, ParseRole("authenticated"))
}
