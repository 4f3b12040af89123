// Package router is the front-facing WebSocket layer. It accepts
// connections from untrusted end-user clients and trusted backend services,
// validates and classifies every frame, and forwards it to the session
// registry or to a registered service connection. The router performs no
// business logic.
//
// Two topologies are served: Hub handles the session endpoint where clients
// and services share one connection point and are told apart by the
// server_id field; Relay handles the single-endpoint relay topology keyed by
// user id.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/lightning-power-users/lightning-power-users-website/internal/session"
	"github.com/lightning-power-users/lightning-power-users-website/pkg/protocol"
)

// Hub routes frames on the session endpoint.
type Hub struct {
	registry *session.Registry
	logger   *slog.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	maxMessageBytes int64
	msgRate         rate.Limit
	msgBurst        int
}

// Options configures a Hub.
type Options struct {
	AllowedOrigins    []string
	MaxMessageBytes   int64   // per-frame read limit; default 64KB
	MessagesPerSecond float64 // per-connection frame budget; default 10
	Burst             int     // default 20
}

// New creates a Hub.
func New(registry *session.Registry, logger *slog.Logger, metrics *Metrics, opts Options) *Hub {
	maxBytes := opts.MaxMessageBytes
	if maxBytes == 0 {
		maxBytes = 64 * 1024
	}
	rps := opts.MessagesPerSecond
	if rps == 0 {
		rps = 10
	}
	burst := opts.Burst
	if burst == 0 {
		burst = 20
	}
	return &Hub{
		registry:        registry,
		logger:          logger.With("component", "router"),
		metrics:         metrics,
		upgrader:        makeUpgrader(opts.AllowedOrigins),
		maxMessageBytes: maxBytes,
		msgRate:         rate.Limit(rps),
		msgBurst:        burst,
	}
}

// HandleSessionWS serves one WebSocket connection on the session endpoint.
// Frames are processed strictly in arrival order; sessions first contacted
// on this connection are evicted when it closes.
func (h *Hub) HandleSessionWS(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(h.maxMessageBytes)
	h.metrics.connOpened()
	defer h.metrics.connClosed()

	wsc := newWSConn(conn)
	limiter := rate.NewLimiter(h.msgRate, h.msgBurst)

	// Sessions owned by this connection, evicted when it goes away.
	owned := make(map[string]bool)
	defer func() {
		for id := range owned {
			h.registry.Evict(id)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("read error", "error", err)
			return
		}
		if string(data) == "close" {
			return
		}
		if !limiter.Allow() {
			h.metrics.dropped("rate_limited")
			h.logger.Debug("frame rate limited")
			continue
		}
		h.handleFrame(context.Background(), wsc, data, owned)
	}
}

// handleFrame validates and classifies a single frame. Anything that fails
// validation is dropped with a log entry and no reply: senders are expected
// to be well-behaved and get no negotiated error channel at this boundary.
func (h *Hub) handleFrame(ctx context.Context, conn *wsConn, data []byte, owned map[string]bool) {
	var msg protocol.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.metrics.dropped("bad_json")
		h.logger.Error("error loading json", "error", err, "data", string(data))
		return
	}

	if msg.SessionID == "" {
		h.metrics.dropped("missing_session_id")
		h.logger.Error("session_id is missing", "data", string(data))
		return
	}
	if !validToken(msg.SessionID) {
		h.metrics.dropped("invalid_session_id")
		h.logger.Error("invalid session_id", "session_id", msg.SessionID)
		return
	}

	switch msg.ServerID {
	case "":
		// End-user client path.
		owned[msg.SessionID] = true
		h.metrics.routed("session")
		h.registry.Dispatch(ctx, conn, msg.SessionID, &msg)

	case protocol.ServiceInvoices:
		h.metrics.routed("service")
		h.registry.Deliver(ctx, msg.SessionID, &protocol.Inbound{
			SessionID:   msg.SessionID,
			Action:      protocol.ActionReceivePayment,
			InvoiceData: msg.InvoiceData,
		})

	case protocol.ServiceChannels:
		h.metrics.routed("service")
		h.registry.Deliver(ctx, msg.SessionID, &protocol.Inbound{
			SessionID:         msg.SessionID,
			Action:            protocol.ActionChannelOpen,
			Error:             msg.Error,
			OpenChannelUpdate: msg.OpenChannelUpdate,
		})

	default:
		h.metrics.dropped("invalid_server_id")
		h.logger.Error("invalid server_id", "server_id", string(msg.ServerID))
	}
}

// validToken reports whether s is a version-4 random unique token.
func validToken(s string) bool {
	u, err := uuid.Parse(s)
	return err == nil && u.Version() == 4
}
