package jwt

import (
	"testing"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/config"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clinicID = "3d7a0c1e-7a52-4b5f-9bd6-000000000001"

func newManager(expiry time.Duration) *Manager {
	return NewManager(&config.JWTConfig{Secret: "test-secret-key-32-bytes-long!!!", AccessExpiry: expiry, Issuer: "dentiagest"})
}

func TestManager_RoundTrip(t *testing.T) {
	m := newManager(time.Hour)

	tok, err := m.Generate(UserInfo{ID: "u1", Email: "ana@example.com", Role: tenant.RoleDentist, ClinicID: clinicID})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)

	claims, err := m.Validate(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, clinicID, claims.ClinicID)
	role, ok := claims.ParsedRole()
	assert.True(t, ok)
	assert.Equal(t, tenant.RoleDentist, role)
}

func TestManager_GenerateRejectsUnboundStaff(t *testing.T) {
	m := newManager(time.Hour)

	_, err := m.Generate(UserInfo{ID: "u1", Role: tenant.RoleReceptionist})
	assert.Error(t, err)

	_, err = m.Generate(UserInfo{ID: "u1", Role: "superuser", ClinicID: clinicID})
	assert.Error(t, err)

	_, err = m.Generate(UserInfo{ID: "o1", Role: tenant.RoleOwner})
	assert.NoError(t, err, "owners may have no home clinic")
}

func TestManager_ValidateFailures(t *testing.T) {
	m := newManager(time.Hour)

	t.Run("expired", func(t *testing.T) {
		tok, err := newManager(-time.Minute).Generate(UserInfo{ID: "u1", Role: tenant.RoleAdmin, ClinicID: clinicID})
		require.NoError(t, err)
		_, err = m.Validate(tok.AccessToken)
		assert.ErrorIs(t, err, errors.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewManager(&config.JWTConfig{Secret: "another-secret", AccessExpiry: time.Hour, Issuer: "dentiagest"})
		tok, err := other.Generate(UserInfo{ID: "u1", Role: tenant.RoleAdmin, ClinicID: clinicID})
		require.NoError(t, err)
		_, err = m.Validate(tok.AccessToken)
		assert.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewManager(&config.JWTConfig{Secret: "test-secret-key-32-bytes-long!!!", AccessExpiry: time.Hour, Issuer: "someone-else"})
		tok, err := other.Generate(UserInfo{ID: "u1", Role: tenant.RoleAdmin, ClinicID: clinicID})
		require.NoError(t, err)
		_, err = m.Validate(tok.AccessToken)
		assert.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("unsigned", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1", Role: "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.Validate(raw)
		assert.ErrorIs(t, err, errors.ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Validate("not.a.token")
		assert.ErrorIs(t, err, errors.ErrTokenInvalid)
	})
}
