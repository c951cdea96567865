package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

func newTestService() *Service {
	return NewService(testSecret, time.Hour, 24*time.Hour, 31*24*time.Hour)
}

func TestGenerateMemberToken(t *testing.T) {
	service := newTestService()

	token, err := service.GenerateMemberToken(42)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateSessionToken(token, RealmMember)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.MemberID)
	assert.Equal(t, RealmMember, claims.Realm)
	assert.Equal(t, SessionToken, claims.TokenKind)
}

func TestGenerateAdminToken(t *testing.T) {
	service := newTestService()
	adminID := uuid.New()

	token, err := service.GenerateAdminToken(adminID)
	require.NoError(t, err)

	claims, err := service.ValidateSessionToken(token, RealmAdmin)
	require.NoError(t, err)
	assert.Equal(t, adminID.String(), claims.AdminID)
	assert.Equal(t, RealmAdmin, claims.Realm)
}

func TestSessionTokenRealmEnforced(t *testing.T) {
	service := newTestService()

	memberToken, err := service.GenerateMemberToken(7)
	require.NoError(t, err)

	// A member token must not pass admin-realm validation
	_, err = service.ValidateSessionToken(memberToken, RealmAdmin)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "realm")
}

func TestActionTokenPurposeEnforced(t *testing.T) {
	service := newTestService()

	token, jti, err := service.GenerateActionToken(7, "password_setup", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, jti)

	claims, err := service.ValidateActionToken(token, "password_setup")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.MemberID)

	parsed, err := claims.JTI()
	require.NoError(t, err)
	assert.Equal(t, jti, parsed)

	_, err = service.ValidateActionToken(token, "payment_upload")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "purpose")
}

func TestActionTokenIsNotASessionToken(t *testing.T) {
	service := newTestService()

	token, _, err := service.GenerateActionToken(7, "password_setup", time.Hour)
	require.NoError(t, err)

	_, err = service.ValidateSessionToken(token, RealmMember)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "kind")
}

func TestExpiredTokenReturnsErrTokenExpired(t *testing.T) {
	service := newTestService()

	token, _, err := service.GenerateActionToken(7, "password_setup", -time.Minute)
	require.NoError(t, err)

	_, err = service.ValidateActionToken(token, "password_setup")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestWrongSecretRejected(t *testing.T) {
	service := newTestService()
	other := NewService("different-secret", time.Hour, time.Hour, time.Hour)

	token, err := service.GenerateMemberToken(7)
	require.NoError(t, err)

	_, err = other.ValidateSessionToken(token, RealmMember)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestActionTokensHaveUniqueJTIs(t *testing.T) {
	service := newTestService()

	_, jti1, err := service.GenerateActionToken(7, "payment_upload", time.Hour)
	require.NoError(t, err)
	_, jti2, err := service.GenerateActionToken(7, "payment_upload", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, jti1, jti2)
}
