package token

import (
	"testing"
	"time"

	"github.com/medchain/identity-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *Service {
	return NewService([]byte("0123456789abcdef0123456789abcdef"), "identity-service", time.Hour, 30*24*time.Hour)
}

func TestIssueAndValidateAccess(t *testing.T) {
	svc := testService()

	signed, err := svc.IssueAccess(42, models.RoleDoctor)
	require.NoError(t, err)

	claims, err := svc.Validate(signed, TypeAccess)
	require.NoError(t, err)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
	assert.Equal(t, models.RoleDoctor, claims.Role)
	assert.Equal(t, "standard", claims.AuthLevel)
	assert.NotEmpty(t, claims.ID)
}

func TestAdminGetsFullAuthLevel(t *testing.T) {
	svc := testService()

	signed, err := svc.IssueAccess(1, models.RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.Validate(signed, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "full", claims.AuthLevel)
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	svc := testService()

	signed, err := svc.IssueRefresh(42)
	require.NoError(t, err)

	_, err = svc.Validate(signed, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Validate(signed, TypeRefresh)
	assert.NoError(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewService([]byte("0123456789abcdef0123456789abcdef"), "identity-service", -time.Minute, -time.Minute)

	signed, err := svc.IssueAccess(42, models.RolePatient)
	require.NoError(t, err)

	_, err = svc.Validate(signed, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTamperedTokenRejected(t *testing.T) {
	svc := testService()

	signed, err := svc.IssueAccess(42, models.RolePatient)
	require.NoError(t, err)

	_, err = svc.Validate(signed+"xx", TypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestWrongKeyRejected(t *testing.T) {
	svc := testService()
	other := NewService([]byte("ffffffffffffffffffffffffffffffff"), "identity-service", time.Hour, time.Hour)

	signed, err := svc.IssueAccess(42, models.RolePatient)
	require.NoError(t, err)

	_, err = other.Validate(signed, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestWrongIssuerRejected(t *testing.T) {
	other := NewService([]byte("0123456789abcdef0123456789abcdef"), "someone-else", time.Hour, time.Hour)

	signed, err := other.IssueAccess(42, models.RolePatient)
	require.NoError(t, err)

	_, err = testService().Validate(signed, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestUniqueJTIPerToken(t *testing.T) {
	svc := testService()

	a, err := svc.IssueAccess(42, models.RolePatient)
	require.NoError(t, err)
	b, err := svc.IssueAccess(42, models.RolePatient)
	require.NoError(t, err)

	claimsA, err := svc.Validate(a, TypeAccess)
	require.NoError(t, err)
	claimsB, err := svc.Validate(b, TypeAccess)
	require.NoError(t, err)
	assert.NotEqual(t, claimsA.ID, claimsB.ID)
}
