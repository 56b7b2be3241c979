package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teresa-solution/tenant-access-service/internal/errs"
)

var testSecret = []byte("test-signing-secret")

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	userID := uuid.New()
	tenantID := uuid.New()

	raw, err := issuer.Issue(userID, &tenantID, "admin")
	require.NoError(t, err)

	claims, err := issuer.Verify(raw)
	require.NoError(t, err)

	gotUser, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, gotUser)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, tenantID, *claims.TenantID)
	assert.Equal(t, "admin", claims.Role)
}

func TestIssuer_SuperAdminTokenOmitsTenant(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	raw, err := issuer.Issue(uuid.New(), nil, "super_admin")
	require.NoError(t, err)

	claims, err := issuer.Verify(raw)
	require.NoError(t, err)
	assert.Nil(t, claims.TenantID)
	assert.Equal(t, "super_admin", claims.Role)
}

func TestIssuer_TamperedTokenFails(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	raw, err := issuer.Issue(uuid.New(), nil, "user")
	require.NoError(t, err)

	// Flip one byte of the signature.
	tampered := []byte(raw)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = issuer.Verify(string(tampered))
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidToken, errs.KindOf(err))
}

func TestIssuer_WrongSecretFails(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	other := NewIssuer([]byte("another-secret"), time.Hour)

	raw, err := issuer.Issue(uuid.New(), nil, "user")
	require.NoError(t, err)

	_, err = other.Verify(raw)
	assert.Equal(t, errs.KindInvalidToken, errs.KindOf(err))
}

func TestIssuer_ExpiredTokenDistinct(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	issued := time.Now()
	issuer.now = func() time.Time { return issued }

	raw, err := issuer.Issue(uuid.New(), nil, "user")
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = issuer.Verify(raw)
	require.Error(t, err)
	assert.Equal(t, errs.KindTokenExpired, errs.KindOf(err))
}

func TestIssuer_Refresh(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	userID := uuid.New()
	tenantID := uuid.New()

	raw, err := issuer.Issue(userID, &tenantID, "user")
	require.NoError(t, err)

	refreshed, err := issuer.Refresh(raw, nil)
	require.NoError(t, err)

	claims, err := issuer.Verify(refreshed)
	require.NoError(t, err)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, tenantID, *claims.TenantID)
	assert.Equal(t, "user", claims.Role)
}

func TestIssuer_RefreshWithSwitch(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	original := uuid.New()
	target := uuid.New()

	raw, err := issuer.Issue(uuid.New(), &original, "user")
	require.NoError(t, err)

	refreshed, err := issuer.Refresh(raw, &target)
	require.NoError(t, err)

	claims, err := issuer.Verify(refreshed)
	require.NoError(t, err)
	assert.Equal(t, target, *claims.TenantID)
}

func TestIssuer_RefreshExpiredFails(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	issued := time.Now()
	issuer.now = func() time.Time { return issued }

	raw, err := issuer.Issue(uuid.New(), nil, "user")
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = issuer.Refresh(raw, nil)
	assert.Equal(t, errs.KindTokenExpired, errs.KindOf(err))
}

func TestIssuer_VerifyGarbage(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	_, err := issuer.Verify("not-a-token")
	assert.Equal(t, errs.KindInvalidToken, errs.KindOf(err))
}
