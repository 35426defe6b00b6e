package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateAdminToken(t *testing.T) {
	mgr := NewJWTManager("test-signing-key", time.Hour)

	token, err := mgr.GenerateAdminToken("ops@example.com")
	require.NoError(t, err)

	claims, err := mgr.ValidateAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, ScopeAdminDiagnostics, claims.Scope)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateAdminToken_wrongSigningKey(t *testing.T) {
	issuer := NewJWTManager("key-a", time.Hour)
	validator := NewJWTManager("key-b", time.Hour)

	token, err := issuer.GenerateAdminToken("ops@example.com")
	require.NoError(t, err)

	_, err = validator.ValidateAdminToken(token)
	assert.Error(t, err)
}

func TestValidateAdminToken_expired(t *testing.T) {
	mgr := NewJWTManager("test-signing-key", -time.Hour)

	token, err := mgr.GenerateAdminToken("ops@example.com")
	require.NoError(t, err)

	_, err = mgr.ValidateAdminToken(token)
	assert.Error(t, err)
}

func TestValidateAdminToken_rejectsNonAdminScope(t *testing.T) {
	mgr := NewJWTManager("test-signing-key", time.Hour)
	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			Issuer:    "flodgatt",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Scope: "workflows:write",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(mgr.signingKey)
	require.NoError(t, err)

	_, err = mgr.ValidateAdminToken(signed)
	assert.Error(t, err)
}

func TestExtractBearerToken(t *testing.T) {
	token, err := ExtractBearerToken("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = ExtractBearerToken("abc123")
	assert.Error(t, err)

	_, err = ExtractBearerToken("")
	assert.Error(t, err)
}
