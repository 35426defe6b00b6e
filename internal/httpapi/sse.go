package httpapi

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/flodgatt/flodgatt/internal/event"
	"github.com/flodgatt/flodgatt/internal/filter"
	"github.com/flodgatt/flodgatt/internal/metrics"
	"github.com/flodgatt/flodgatt/internal/subscription"
	"github.com/flodgatt/flodgatt/internal/tracing"
)

// handleSSE streams events for a subscription via Server-Sent Events,
// using the http.Flusher-driven header set, with a comment-heartbeat
// convention matching Mastodon's literal ":thump". Last-Event-ID
// replay is dropped — Flodgatt never buffers history — in favor of a
// live-only subscribe-then-stream loop.
func (h *StreamingHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	sub, flusher, ch, unsubscribe, logger, ok := h.acceptSSE(w, r)
	if !ok {
		return
	}
	defer unsubscribe()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if isPing(ev) {
				fmt.Fprint(w, ":thump\n\n")
				flusher.Flush()
				continue
			}
			if !filter.Allow(ev, sub) {
				continue
			}
			b, err := ev.MarshalWire()
			if err != nil {
				logger.Warn("failed to marshal event for SSE client", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventName(), string(b))
			flusher.Flush()
		}
	}
}

// acceptSSE runs the handshake phase — auth, header setup, and
// subscribe — under one HTTP span, separate from the unbounded
// streaming loop that follows.
func (h *StreamingHandler) acceptSSE(w http.ResponseWriter, r *http.Request) (sub subscription.Subscription, flusher http.Flusher, ch <-chan event.Event, unsubscribe func(), logger *zap.Logger, ok bool) {
	spanCtx, span := tracing.StartHTTPSpan(r.Context(), r.Method, r.URL.String())
	defer span.End()
	r = r.WithContext(spanCtx)

	sub, err := h.resolveSubscription(r)
	if err != nil {
		http.Error(w, `{"error":"`+sanitizeErr(err.Error())+`"}`, http.StatusUnauthorized)
		return subscription.Subscription{}, nil, nil, nil, nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fl, flushable := w.(http.Flusher)
	if !flushable {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return subscription.Subscription{}, nil, nil, nil, nil, false
	}

	connID := metrics.NewConnectionID()
	connLogger := h.logger.With(zap.String("connection_id", connID))

	stream, unsub, err := h.mgr.Subscribe(sub.Timeline, sub.HashtagName)
	if err != nil {
		connLogger.Error("subscribe failed", zap.Error(err))
		return subscription.Subscription{}, nil, nil, nil, nil, false
	}
	connLogger.Debug("sse connection accepted")

	return sub, fl, stream, unsub, connLogger, true
}
