package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testIdentity() Identity {
	return Identity{Subject: "user-1", Username: "alice", Role: "admin"}
}

func TestGenerateTokens_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	svc := NewTokenService(testSecrets(), DefaultPolicy(), clock)

	triple, err := svc.GenerateTokens(testIdentity())
	require.NoError(t, err)
	require.NotEmpty(t, triple.AccessToken)
	require.NotEmpty(t, triple.RefreshToken)
	require.NotEmpty(t, triple.CSRFToken)

	claims, err := svc.VerifyAccessToken(triple.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "admin", claims.Role)
	require.NotEmpty(t, claims.ID)

	refreshClaims, err := svc.VerifyRefreshToken(triple.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, claims.ID, refreshClaims.ID, "access and refresh tokens share a jti")
}

func TestVerifyAccessToken_RejectsGarbage(t *testing.T) {
	svc := NewTokenService(testSecrets(), DefaultPolicy(), newFakeClock())

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.VerifyAccessToken(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestVerifyAccessToken_RejectsWrongSecret(t *testing.T) {
	clock := newFakeClock()
	svc := NewTokenService(testSecrets(), DefaultPolicy(), clock)

	other := testSecrets()
	other.Access = []byte("a-different-access-secret")
	otherSvc := NewTokenService(other, DefaultPolicy(), clock)

	triple, err := svc.GenerateTokens(testIdentity())
	require.NoError(t, err)

	_, err = otherSvc.VerifyAccessToken(triple.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessToken_RejectsExpired(t *testing.T) {
	clock := newFakeClock()
	svc := NewTokenService(testSecrets(), DefaultPolicy(), clock)

	triple, err := svc.GenerateTokens(testIdentity())
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)

	_, err = svc.VerifyAccessToken(triple.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken, "expired token must be indistinguishable from a forged one")
}

func TestVerifyRefreshToken_RejectsAccessToken(t *testing.T) {
	svc := NewTokenService(testSecrets(), DefaultPolicy(), newFakeClock())

	triple, err := svc.GenerateTokens(testIdentity())
	require.NoError(t, err)

	_, err = svc.VerifyRefreshToken(triple.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.VerifyAccessToken(triple.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateCSRF(t *testing.T) {
	svc := NewTokenService(testSecrets(), DefaultPolicy(), newFakeClock())

	triple, err := svc.GenerateTokens(testIdentity())
	require.NoError(t, err)
	claims, err := svc.VerifyAccessToken(triple.AccessToken)
	require.NoError(t, err)

	require.True(t, svc.ValidateCSRF(triple.CSRFToken, claims))
	require.False(t, svc.ValidateCSRF("", claims))
	require.False(t, svc.ValidateCSRF("tampered", claims))
}

func TestValidateCSRF_RejectsOtherSessionsToken(t *testing.T) {
	svc := NewTokenService(testSecrets(), DefaultPolicy(), newFakeClock())

	first, err := svc.GenerateTokens(testIdentity())
	require.NoError(t, err)
	second, err := svc.GenerateTokens(testIdentity())
	require.NoError(t, err)

	firstClaims, err := svc.VerifyAccessToken(first.AccessToken)
	require.NoError(t, err)

	require.False(t, svc.ValidateCSRF(second.CSRFToken, firstClaims),
		"a csrf token is bound to the access token issued alongside it")
}

func TestRefresh_IssuesFreshTriple(t *testing.T) {
	svc := NewTokenService(testSecrets(), DefaultPolicy(), newFakeClock())

	original, err := svc.GenerateTokens(testIdentity())
	require.NoError(t, err)

	triple, identity, err := svc.Refresh(original.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, testIdentity(), identity)

	originalClaims, err := svc.VerifyRefreshToken(original.RefreshToken)
	require.NoError(t, err)
	newClaims, err := svc.VerifyAccessToken(triple.AccessToken)
	require.NoError(t, err)
	require.NotEqual(t, originalClaims.ID, newClaims.ID, "refresh issues a fresh jti")
}

func TestRefresh_RejectsExpiredRefreshToken(t *testing.T) {
	clock := newFakeClock()
	svc := NewTokenService(testSecrets(), DefaultPolicy(), clock)

	triple, err := svc.GenerateTokens(testIdentity())
	require.NoError(t, err)

	clock.Advance(8 * 24 * time.Hour)

	_, _, err = svc.Refresh(triple.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}
