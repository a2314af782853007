package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mcpforge/server/pkg/server"
)

// WSConfig configures the WebSocket transport's rate limiting. A connection
// exceeding its burst is closed with RFC 6455 policy-violation status 1008
// rather than merely rejecting individual messages, since a client sending
// faster than the agreed rate is treated as misbehaving, not momentarily
// busy (grounded on examples/middleware/rate-limiting's token-bucket shape,
// golang.org/x/time/rate.Limiter).
type WSConfig struct {
	RequestsPerSecond float64 // default 10
	Burst             int     // default 20
}

const (
	defaultWSRequestsPerSecond = 10
	defaultWSBurst             = 20
)

// WS serves a Server over a WebSocket connection at the handler's mounted
// path (conventionally /mcp/ws). One message per JSON-RPC request/notification/batch.
type WS struct {
	Server   *server.Server
	cfg      WSConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWS builds a WS transport over srv.
func NewWS(srv *server.Server, cfg WSConfig) *WS {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultWSRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultWSBurst
	}
	return &WS{
		Server: srv,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: slog.Default(),
	}
}

// ServeHTTP upgrades the connection and runs its read loop until the client
// disconnects or sends faster than its rate limit allows.
func (ws *WS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	limiter := rate.NewLimiter(rate.Limit(ws.cfg.RequestsPerSecond), ws.cfg.Burst)
	ctx := r.Context()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if !limiter.Allow() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit exceeded"),
				time.Now().Add(time.Second))
			return
		}

		out, err := ws.Server.Handle(ctx, raw)
		if err != nil {
			ws.logger.Error("websocket: handle failed", "error", err)
			continue
		}
		if out == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}
