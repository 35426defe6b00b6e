package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/flodgatt/flodgatt/internal/event"
	"github.com/flodgatt/flodgatt/internal/filter"
	"github.com/flodgatt/flodgatt/internal/metrics"
	"github.com/flodgatt/flodgatt/internal/subscription"
	"github.com/flodgatt/flodgatt/internal/tracing"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dev-friendly; lock down via reverse proxy in prod
}

func (h *StreamingHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	sub, conn, ch, unsubscribe, logger, ok := h.acceptWS(w, r)
	if !ok {
		return
	}
	defer conn.Close()
	defer unsubscribe()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Reader pump: clients don't send anything meaningful on this
	// connection, but we still need to drain incoming control frames
	// and notice when the client goes away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if isPing(ev) {
				// Keep-alives are a literal "{}" text frame on WS, not a
				// protocol-level ping control frame.
				if err := conn.WriteMessage(websocket.TextMessage, []byte("{}")); err != nil {
					return
				}
				continue
			}
			if !filter.Allow(ev, sub) {
				continue
			}
			b, err := ev.MarshalWire()
			if err != nil {
				logger.Warn("failed to marshal event for websocket client", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

// acceptWS runs the handshake phase — auth, upgrade, and subscribe —
// under one HTTP span, separate from the connection's unbounded
// read/write pumps.
func (h *StreamingHandler) acceptWS(w http.ResponseWriter, r *http.Request) (sub subscription.Subscription, conn *websocket.Conn, ch <-chan event.Event, unsubscribe func(), logger *zap.Logger, ok bool) {
	spanCtx, span := tracing.StartHTTPSpan(r.Context(), r.Method, r.URL.String())
	defer span.End()
	r = r.WithContext(spanCtx)

	sub, err := h.resolveSubscription(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return subscription.Subscription{}, nil, nil, nil, nil, false
	}

	// Clients that pass their token via Sec-WebSocket-Protocol (accessToken's
	// third source) expect the server to echo it back in the handshake
	// response. Since the offered value is an opaque per-connection token
	// rather than a fixed protocol name, Subprotocols is populated per
	// request from whatever the client actually offered, so selectSubprotocol
	// always finds a match and echoes it.
	reqUpgrader := upgrader
	reqUpgrader.Subprotocols = websocket.Subprotocols(r)
	wsConn, err := reqUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return subscription.Subscription{}, nil, nil, nil, nil, false
	}

	connID := metrics.NewConnectionID()
	connLogger := h.logger.With(zap.String("connection_id", connID))

	stream, unsub, err := h.mgr.Subscribe(sub.Timeline, sub.HashtagName)
	if err != nil {
		connLogger.Error("subscribe failed", zap.Error(err))
		wsConn.Close()
		return subscription.Subscription{}, nil, nil, nil, nil, false
	}
	connLogger.Debug("websocket connection accepted")

	return sub, wsConn, stream, unsub, connLogger, true
}
