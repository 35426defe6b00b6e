package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAdmin_validToken(t *testing.T) {
	mgr := NewJWTManager("test-signing-key", time.Hour)
	token, err := mgr.GenerateAdminToken("ops@example.com")
	require.NoError(t, err)

	var observedSubject string
	handler := RequireAdmin(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observedSubject, _ = AdminSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/timelines", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ops@example.com", observedSubject)
}

func TestRequireAdmin_missingHeader(t *testing.T) {
	mgr := NewJWTManager("test-signing-key", time.Hour)
	handler := RequireAdmin(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a valid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/timelines", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAdmin_invalidToken(t *testing.T) {
	mgr := NewJWTManager("test-signing-key", time.Hour)
	handler := RequireAdmin(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with an invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/timelines", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
