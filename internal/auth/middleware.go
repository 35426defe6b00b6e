package auth

import (
	"context"
	"net/http"
)

// ContextKey is the key type for context values.
type ContextKey string

// ClaimsContextKey is the context key the validated AdminClaims are
// stored under once RequireAdmin has authenticated a request.
const ClaimsContextKey ContextKey = "admin_claims"

// RequireAdmin wraps next, rejecting any request that doesn't carry a
// valid admin-diagnostics bearer token. There is no dev bypass and no
// API-key fallback: this guards a single low-traffic operator endpoint,
// not a general request path.
func RequireAdmin(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ExtractBearerToken(r.Header.Get("Authorization"))
			if err != nil {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateAdminToken(token)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminSubject extracts the subject (operator/service account name) of
// the validated admin token from ctx, for audit logging.
func AdminSubject(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*AdminClaims)
	if !ok {
		return "", false
	}
	return claims.Subject, true
}
