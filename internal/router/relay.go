package router

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lightning-power-users/lightning-power-users-website/pkg/protocol"
)

// Relay is the single-endpoint topology: browser clients, the web app, the
// invoice watcher and the channel-opening service all connect to one relay.
// Clients are registered for delivery by user id; service frames are
// classified by the enumerated server_id. The relay holds exactly one
// channel-opening connection at a time, last registration wins.
type Relay struct {
	logger   *slog.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	mu       sync.Mutex
	users    map[string]*wsConn
	packages map[string]*protocol.InvoicePackage // keyed by invoice r_hash
	opener   *wsConn                             // single slot for the channel-opening service
}

// NewRelay creates a Relay.
func NewRelay(logger *slog.Logger, metrics *Metrics, allowedOrigins []string) *Relay {
	return &Relay{
		logger:   logger.With("component", "relay"),
		metrics:  metrics,
		upgrader: makeUpgrader(allowedOrigins),
		users:    make(map[string]*wsConn),
		packages: make(map[string]*protocol.InvoicePackage),
	}
}

// HandleRelayWS serves one WebSocket connection on the relay endpoint.
func (r *Relay) HandleRelayWS(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	r.metrics.connOpened()
	defer r.metrics.connClosed()

	wsc := newWSConn(conn)
	registered := make(map[string]bool)
	defer r.dropConn(wsc, registered)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.logger.Debug("read error", "error", err)
			return
		}
		r.handleFrame(wsc, data, registered)
	}
}

func (r *Relay) handleFrame(conn *wsConn, data []byte, registered map[string]bool) {
	var msg protocol.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		r.metrics.dropped("bad_json")
		r.logger.Error("error loading json", "error", err, "data", string(data))
		return
	}

	if msg.UserID == "" && msg.ServerID == "" {
		r.metrics.dropped("missing_identifier")
		r.logger.Error("user_id and server_id missing", "data", string(data))
		return
	}
	if msg.ServerID != "" && !msg.ServerID.Known() {
		r.metrics.dropped("invalid_server_id")
		r.logger.Error("invalid server_id", "server_id", string(msg.ServerID))
		return
	}
	if msg.UserID != "" && !validToken(msg.UserID) {
		r.metrics.dropped("invalid_user_id")
		r.logger.Error("invalid user_id", "user_id", msg.UserID)
		return
	}

	switch msg.ServerID {
	case "":
		// End-user client registration.
		r.mu.Lock()
		r.users[msg.UserID] = conn
		r.mu.Unlock()
		registered[msg.UserID] = true
		r.metrics.routed("relay")
		r.logger.Debug("user registered", "user_id", msg.UserID)

	case protocol.ServiceWebApp:
		r.handleWebApp(&msg, data)

	case protocol.ServiceInvoices:
		r.handleInvoicePaid(&msg)

	case protocol.ServiceChannels:
		r.mu.Lock()
		r.opener = conn
		r.mu.Unlock()
		r.logger.Info("channel-opening service registered")

	default:
		// "main" is the relay's own sender id on outbound commands; inbound
		// frames claiming it have nowhere to go.
		r.metrics.dropped("invalid_server_id")
		r.logger.Error("unroutable server_id", "server_id", string(msg.ServerID))
	}
}

// handleWebApp stores an inbound capacity request package until its invoice
// settles.
func (r *Relay) handleWebApp(msg *protocol.Inbound, data []byte) {
	if msg.Type != protocol.TypeInboundCapacityRequest {
		r.metrics.dropped("unknown_type")
		r.logger.Error("unknown webapp message type", "type", msg.Type)
		return
	}
	var pkg protocol.InvoicePackage
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Invoice.RHash == "" {
		r.metrics.dropped("bad_package")
		r.logger.Error("invalid invoice package", "error", err, "data", string(data))
		return
	}
	r.mu.Lock()
	r.packages[pkg.Invoice.RHash] = &pkg
	r.mu.Unlock()
	r.metrics.routed("relay")
	r.logger.Debug("received invoice package", "r_hash", pkg.Invoice.RHash)
}

// handleInvoicePaid forwards the settlement to the requesting user and
// commands the channel-opening service to fund the channel.
func (r *Relay) handleInvoicePaid(msg *protocol.Inbound) {
	if msg.Type != protocol.TypeInvoicePaid {
		r.metrics.dropped("unknown_type")
		r.logger.Error("unknown invoices message type", "type", msg.Type)
		return
	}
	var inv protocol.InvoiceData
	if err := json.Unmarshal(msg.InvoiceData, &inv); err != nil || inv.RHash == "" {
		r.metrics.dropped("bad_invoice_data")
		r.logger.Error("invalid invoice data", "error", err)
		return
	}

	r.mu.Lock()
	pkg := r.packages[inv.RHash]
	user := (*wsConn)(nil)
	if pkg != nil {
		user = r.users[pkg.UserID]
	}
	opener := r.opener
	r.mu.Unlock()

	if pkg == nil {
		r.metrics.dropped("unknown_r_hash")
		r.logger.Debug("r_hash not found in invoice packages", "r_hash", inv.RHash)
		return
	}

	r.logger.Debug("emit invoice data", "r_hash", inv.RHash, "user_id", pkg.UserID)
	if user != nil {
		if err := user.Send(msg.InvoiceData); err != nil {
			r.logger.Error("send to user failed", "user_id", pkg.UserID, "error", err)
		}
	} else {
		r.logger.Error("user not connected", "user_id", pkg.UserID)
	}

	fundingAmount := pkg.ReciprocationCapacity
	if fundingAmount == 0 {
		capacity, err := strconv.ParseInt(pkg.FormData.Capacity, 10, 64)
		if err != nil {
			r.logger.Error("invalid capacity in package", "r_hash", inv.RHash, "error", err)
			return
		}
		fundingAmount = capacity
	}
	satPerByte, err := strconv.ParseInt(pkg.FormData.TransactionFeeRate, 10, 64)
	if err != nil {
		r.logger.Error("invalid transaction fee rate in package", "r_hash", inv.RHash, "error", err)
		return
	}

	if opener == nil {
		r.metrics.dropped("no_opener")
		r.logger.Error("channel-opening service not connected", "r_hash", inv.RHash)
		return
	}

	cmd := protocol.OpenChannelCommand{
		ServerID:           protocol.ServiceMain,
		UserID:             pkg.UserID,
		Type:               protocol.TypeOpenChannel,
		RemotePubkey:       pkg.ParsedPubkey,
		LocalFundingAmount: fundingAmount,
		SatPerByte:         satPerByte,
	}
	if err := opener.Send(cmd); err != nil {
		r.logger.Error("send to channel-opening service failed", "error", err)
		return
	}
	r.metrics.routed("relay")
}

// dropConn forgets everything registered by a closing connection.
func (r *Relay) dropConn(conn *wsConn, registered map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range registered {
		if r.users[id] == conn {
			delete(r.users, id)
		}
	}
	if r.opener == conn {
		r.opener = nil
	}
}
