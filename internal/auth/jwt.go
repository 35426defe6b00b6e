// Package auth protects the admin diagnostics surface: a single
// bearer-JWT scope check guarding GET /admin/timelines. This is
// intentionally not a user-facing auth system — Mastodon clients bring
// their own pre-existing OAuth tokens, resolved against Postgres by
// internal/authstore, not minted here.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ScopeAdminDiagnostics is the only scope this package knows about.
const ScopeAdminDiagnostics = "admin:diagnostics"

// JWTManager issues and validates the single-purpose admin token.
type JWTManager struct {
	signingKey []byte
	expiry     time.Duration
	issuer     string
}

// NewJWTManager creates a JWT manager for admin-diagnostics tokens.
func NewJWTManager(signingKey string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		signingKey: []byte(signingKey),
		expiry:     expiry,
		issuer:     "flodgatt",
	}
}

// AdminClaims is the entire claim set an admin token carries: who it
// was issued to (for audit logging) and the one scope it grants.
type AdminClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// GenerateAdminToken issues a token for subject (an operator name or
// service account), scoped to admin diagnostics only.
func (j *JWTManager) GenerateAdminToken(subject string) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
		Scope: ScopeAdminDiagnostics,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.signingKey)
}

// ValidateAdminToken parses tokenString and confirms it carries the
// admin-diagnostics scope and was issued by this manager.
func (j *JWTManager) ValidateAdminToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if claims.Issuer != j.issuer {
		return nil, fmt.Errorf("auth: invalid token issuer")
	}
	if claims.Scope != ScopeAdminDiagnostics {
		return nil, fmt.Errorf("auth: token missing %s scope", ScopeAdminDiagnostics)
	}
	return claims, nil
}

// ExtractBearerToken extracts the token from an Authorization header.
func ExtractBearerToken(authHeader string) (string, error) {
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return authHeader[7:], nil
}
