package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_AccessToken(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, 24*time.Hour)
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, PurposeLogin, claims.Purpose)
	assert.NotEmpty(t, claims.ID)
	assert.False(t, claims.IsAdmin())

	remaining := svc.RemainingTTL(claims)
	assert.True(t, remaining > 59*time.Minute && remaining <= time.Hour)
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	issuer := NewJWTService("one", time.Hour, time.Hour)
	verifier := NewJWTService("two", time.Hour, time.Hour)

	token, err := issuer.GenerateAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", time.Minute, time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.GenerateAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_ValidatePurpose(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, time.Hour)
	userID := uuid.New()

	reset, err := svc.GenerateResetToken(userID)
	require.NoError(t, err)

	claims, err := svc.ValidatePurpose(reset, PurposeResetPassword)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)

	_, err = svc.ValidatePurpose(reset, PurposeLogin)
	assert.ErrorIs(t, err, ErrWrongPurpose)

	access, err := svc.GenerateAccessToken(userID)
	require.NoError(t, err)
	_, err = svc.ValidatePurpose(access, PurposeResetPassword)
	assert.ErrorIs(t, err, ErrWrongPurpose)
}

func TestJWTService_InviteToken(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, time.Hour)
	userID, wsID := uuid.New(), uuid.New()

	token, err := svc.GenerateInviteToken(userID, wsID, "viewer")
	require.NoError(t, err)

	claims, err := svc.ValidatePurpose(token, PurposeWorkspaceInvite)
	require.NoError(t, err)
	assert.Equal(t, wsID.String(), claims.WorkspaceID)
	assert.Equal(t, "viewer", claims.Role)
	assert.False(t, claims.IsAdmin())

	remaining := svc.RemainingTTL(claims)
	assert.True(t, remaining > InviteExpiry-time.Minute)
}

func TestJWTService_RefreshAndAdmin(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, 48*time.Hour)

	tokenID, token, err := svc.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)
	extracted, err := svc.ExtractTokenID(token)
	require.NoError(t, err)
	assert.Equal(t, tokenID, extracted)

	adminID := uuid.New()
	adminToken, err := svc.GenerateAdminToken(adminID)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(adminToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, adminID.String(), claims.AdminID)
	assert.Empty(t, claims.Purpose)
}
