package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/flodgatt/flodgatt/internal/auth"
	"github.com/flodgatt/flodgatt/internal/streaming"
)

// Snapshotter is the narrow slice of *streaming.Manager the admin
// handler needs, kept as an interface so tests can fake it.
type Snapshotter interface {
	Snapshot() map[string]int
}

// AdminHandler serves the bearer-JWT-protected diagnostics endpoint:
// a live view of per-timeline subscriber refcounts,
// useful for confirming Redis SUBSCRIBE/UNSUBSCRIBE churn matches
// actual client demand.
type AdminHandler struct {
	mgr    Snapshotter
	logger *zap.Logger
}

// NewAdminHandler constructs a new handler.
func NewAdminHandler(mgr *streaming.Manager, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{mgr: mgr, logger: logger}
}

// RegisterRoutes registers the admin endpoint on mux, wrapped in the
// admin-only JWT middleware.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, jwtManager *auth.JWTManager) {
	mux.Handle("/admin/timelines", auth.RequireAdmin(jwtManager)(http.HandlerFunc(h.handleTimelines)))
}

func (h *AdminHandler) handleTimelines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	if subject, ok := auth.AdminSubject(r.Context()); ok {
		h.logger.Info("admin diagnostics request", zap.String("subject", subject))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timelines": h.mgr.Snapshot(),
	})
}

// writeJSON writes a JSON response with status and content-type.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sanitizeErr trims error messages for safe client output (UTF-8 safe).
func sanitizeErr(s string) string {
	runes := []rune(s)
	if len(runes) > 200 {
		return string(runes[:200])
	}
	return s
}
