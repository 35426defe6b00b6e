// Package httpapi implements the client-facing WebSocket and SSE
// transports: an HTTP handler built around the websocket.Upgrader/
// http.Flusher plumbing, driving a subscribe-then-stream loop against
// the SubscriptionManager, with event filtering running per client
// through internal/filter before anything is written to the wire.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/flodgatt/flodgatt/internal/authstore"
	"github.com/flodgatt/flodgatt/internal/event"
	"github.com/flodgatt/flodgatt/internal/streaming"
	"github.com/flodgatt/flodgatt/internal/subscription"
)

// TokenResolver is the narrow slice of *authstore.Store the handler
// needs, kept as an interface so tests can fake it without a database.
type TokenResolver interface {
	ResolveToken(ctx context.Context, accessToken string) (authstore.AuthenticatedUser, error)
}

// StreamingHandler serves /api/v1/streaming over both WebSocket and
// SSE, backed by a single shared SubscriptionManager.
type StreamingHandler struct {
	mgr           *streaming.Manager
	auth          TokenResolver
	tags          TagResolver
	logger        *zap.Logger
	whitelistMode bool
}

// NewStreamingHandler wires a handler against the shared subscription
// manager and auth/tag resolvers. whitelistMode, when true, disables the
// anonymous public-timeline path: every stream, including public ones,
// then requires a resolvable access token.
func NewStreamingHandler(mgr *streaming.Manager, auth TokenResolver, tags TagResolver, logger *zap.Logger, whitelistMode bool) *StreamingHandler {
	return &StreamingHandler{mgr: mgr, auth: auth, tags: tags, logger: logger, whitelistMode: whitelistMode}
}

// RegisterRoutes registers both transports on the provided mux.
func (h *StreamingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/streaming", h.handleWS)
	mux.HandleFunc("/api/v1/streaming/sse", h.handleSSE)
}

// resolveSubscription authenticates the request and parses its stream
// query into a full subscription.Subscription. Only public timelines may
// be reached without an access token, and only when the handler is not
// running in whitelist mode; every other stream always requires one.
func (h *StreamingHandler) resolveSubscription(r *http.Request) (subscription.Subscription, error) {
	token := accessToken(r)
	if token == "" {
		if h.whitelistMode || !isPublicStream(r.URL.Query().Get("stream")) {
			return subscription.Subscription{}, fmt.Errorf("httpapi: missing access token")
		}
		tl, hashtagName, err := parseStreamQuery(r.URL.Query(), 0, h.tags)
		if err != nil {
			return subscription.Subscription{}, err
		}
		return subscription.Subscription{
			Timeline:     tl,
			AllowedLangs: allowedLanguages(r.URL.Query()),
			HashtagName:  hashtagName,
		}, nil
	}

	user, err := h.auth.ResolveToken(r.Context(), token)
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("httpapi: authentication failed: %w", err)
	}

	tl, hashtagName, err := parseStreamQuery(r.URL.Query(), user.ID, h.tags)
	if err != nil {
		return subscription.Subscription{}, err
	}

	return subscription.Subscription{
		Timeline:     tl,
		AllowedLangs: allowedLanguages(r.URL.Query()),
		Blocks:       user.Blocks,
		HashtagName:  hashtagName,
		AccessToken:  token,
	}, nil
}

// isPublicStream reports whether the raw stream query names one of the
// public/public:local/public:media/public:local:media variants, the only
// streams eligible for anonymous access.
func isPublicStream(stream string) bool {
	parts := strings.Split(stream, ":")
	return len(parts) > 0 && parts[0] == "public"
}

// isPing reports whether ev is the manager's keep-alive, which both
// transports handle as a transport-level heartbeat rather than a
// JSON envelope.
func isPing(ev event.Event) bool { return ev.Variant == event.VariantPing }
