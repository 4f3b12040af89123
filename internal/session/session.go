// Package session implements the per-user conversation state machine of the
// capacity-request workflow and the registry that routes inbound messages to
// the owning session.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lightning-power-users/lightning-power-users-website/internal/lightning"
	"github.com/lightning-power-users/lightning-power-users-website/internal/noderpc"
	"github.com/lightning-power-users/lightning-power-users-website/internal/store"
	"github.com/lightning-power-users/lightning-power-users-website/pkg/protocol"
)

// Conn is the outbound half of a client connection. The session owns exactly
// one and sends every reply through it.
type Conn interface {
	Send(v any) error
}

// Session is one end user's conversation across the channel-opening
// workflow, bound to one live connection. All handlers of a session run from
// the single goroutine reading that connection, so its fields need no lock.
type Session struct {
	id          string
	localPubkey string
	conn        Conn
	rpc         noderpc.Client
	store       store.Store
	log         *slog.Logger

	nodeURI        string
	connectTimeout time.Duration
	invoiceTimeout time.Duration

	remotePubkey string
	remoteHost   string

	// reciprocationCapacity is non-zero only when an existing channel with
	// the peer already favors the operator; it then overrides the
	// user-chosen capacity and waives the capacity fee.
	reciprocationCapacity int64
}

func (s *Session) send(v any) error {
	return s.conn.Send(v)
}

func (s *Session) sendError(msg string) error {
	return s.send(protocol.NewErrorMessage(msg))
}

// pleaseConnect is the fixed remediation sent for any peer-connect failure;
// raw transport errors never reach the client.
func (s *Session) pleaseConnect() string {
	return "Error: please connect to our node " + s.nodeURI
}

// Register acknowledges the session. Registering twice is harmless: the
// reply is identical and no workflow record is touched.
func (s *Session) Register(ctx context.Context) error {
	return s.send(protocol.NewRegistered())
}

// ConnectToPeer parses the submitted pubkey[@host] and ensures a network
// connection to the peer, creating the workflow record on success.
func (s *Session) ConnectToPeer(ctx context.Context, remotePubkeyInput string) error {
	s.log.Debug("connect_to_peer", "remote_pubkey_input", remotePubkeyInput)

	addr, err := lightning.ParseNodeAddress(remotePubkeyInput)
	if err != nil {
		s.log.Debug("invalid pubkey input", "input", remotePubkeyInput, "error", err)
		return s.sendError(err.Error())
	}
	s.remotePubkey = addr.Pubkey
	s.remoteHost = addr.Host

	rpcCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	peers, err := s.rpc.ListPeers(rpcCtx)
	if err != nil {
		s.log.Error("list peers failed", "error", err)
		return s.sendError(s.pleaseConnect())
	}
	for _, p := range peers {
		if p.Pubkey == s.remotePubkey {
			s.log.Debug("already connected to peer", "remote_pubkey", s.remotePubkey)
			return s.sendConnected(ctx)
		}
	}

	if s.remoteHost == "" {
		s.log.Debug("unknown pubkey, no host hint", "pubkey", s.remotePubkey)
		return s.sendError(s.pleaseConnect())
	}

	if err := s.rpc.ConnectPeer(rpcCtx, s.remotePubkey, s.remoteHost); err != nil {
		s.log.Error("connect to peer failed",
			"remote_pubkey", s.remotePubkey,
			"remote_host", s.remoteHost,
			"error", err)
		return s.sendError(s.pleaseConnect())
	}

	s.log.Debug("connected to peer", "remote_pubkey", s.remotePubkey)
	return s.sendConnected(ctx)
}

// sendConnected applies the existing-channel policy, persists a fresh
// workflow record and acknowledges the connection.
func (s *Session) sendConnected(ctx context.Context) error {
	rpcCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	channels, err := s.rpc.ListChannels(rpcCtx)
	if err != nil {
		s.log.Error("list channels failed", "error", err)
		return s.sendError(s.pleaseConnect())
	}

	totals := lightning.PeerTotals(channels, s.remotePubkey)
	s.log.Debug("peer channel totals", "totals", totals)

	if totals != nil {
		if totals.Count > 1 {
			return s.sendError(fmt.Sprintf(
				"%d channels already open between us, please close %d",
				totals.Count, totals.Count-1))
		}
		if totals.Balance != nil && *totals.Balance > 0.7 {
			return s.sendError(
				"Our existing channel already has inbound capacity " +
					"in your favor, please close it to request more capacity")
		}
		s.reciprocationCapacity = totals.Capacity
	}

	err = s.store.CreateRequest(ctx, &store.CapacityRequest{
		ID:           uuid.New().String(),
		SessionID:    s.id,
		RemotePubkey: s.remotePubkey,
		RemoteHost:   s.remoteHost,
	})
	if err != nil {
		return fmt.Errorf("create capacity request: %w", err)
	}

	return s.send(protocol.NewConnected(totals))
}

// ConfirmCapacity records the chosen capacity and fee schedule. A fee rate
// outside the enumerated set selects the reciprocation path, which is only
// valid when the capacity equals the previously recorded reciprocation
// capacity.
func (s *Session) ConfirmCapacity(ctx context.Context, formData protocol.FormData) error {
	s.log.Debug("confirm_capacity", "form_data", formData)

	req, err := s.store.LatestRequest(ctx, s.id)
	if err != nil {
		return fmt.Errorf("load capacity request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("no capacity request for session")
	}

	form, err := protocol.ParseCapacityForm(formData)
	if err != nil {
		return fmt.Errorf("confirm_capacity form: %w", err)
	}

	var (
		rate lightning.FeeRate
		ok   bool
	)
	if form.HasFeeRate {
		rate, ok = lightning.ParseFeeRate(form.FeeRateInput)
	}
	if !ok {
		// Reciprocation path: no fee, but the capacity must match what the
		// existing channel earned the user.
		if s.reciprocationCapacity == 0 || form.Capacity != s.reciprocationCapacity {
			s.log.Debug("capacity does not match reciprocation capacity",
				"capacity", form.Capacity,
				"reciprocation_capacity", s.reciprocationCapacity)
			return s.sendError("Capacity must match the reciprocation capacity")
		}
		rate = lightning.FeeRate{}
	}

	req.Capacity = form.Capacity
	req.CapacityFeeRate = rate.Rate()
	req.CapacityFee = rate.CapacityFee(form.Capacity)

	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return fmt.Errorf("update capacity request: %w", err)
	}

	return s.send(protocol.NewConfirmedCapacity())
}

// ChainFee prices the funding transaction, issues the invoice for the total
// fee and delivers the payment request.
func (s *Session) ChainFee(ctx context.Context, formData protocol.FormData) error {
	s.log.Debug("chain_fee", "form_data", formData)

	req, err := s.store.LatestRequest(ctx, s.id)
	if err != nil {
		return fmt.Errorf("load capacity request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("no capacity request for session")
	}
	if req.Capacity == 0 {
		return fmt.Errorf("capacity not confirmed for session")
	}

	form, err := protocol.ParseChainFeeForm(formData)
	if err != nil {
		return fmt.Errorf("chain_fee form: %w", err)
	}
	if form.TransactionFeeRate <= 0 {
		return s.sendError("Transaction fee rate must be positive")
	}

	req.TransactionFeeRate = form.TransactionFeeRate
	req.TransactionFee = form.TransactionFeeRate * lightning.ExpectedBytes
	req.TotalFee = req.CapacityFee + req.TransactionFee

	memo := "Lightning Power Users capacity request: "
	if req.CapacityFeeRate != 0 {
		memo += fmt.Sprintf("%d @ %s", req.Capacity,
			strconv.FormatFloat(req.CapacityFeeRate, 'g', -1, 64))
	} else {
		memo += fmt.Sprintf("reciprocate %d", req.Capacity)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, s.invoiceTimeout)
	defer cancel()

	created, err := s.rpc.AddInvoice(rpcCtx, req.TotalFee, memo)
	if err != nil {
		s.log.Error("add invoice failed", "total_fee", req.TotalFee, "error", err)
		return s.sendError("Could not create an invoice, please try again")
	}
	invoice, err := s.rpc.LookupInvoice(rpcCtx, created.RHash)
	if err != nil {
		s.log.Error("lookup invoice failed", "r_hash", created.RHash, "error", err)
		return s.sendError("Could not create an invoice, please try again")
	}

	req.PaymentRequest = invoice.PaymentRequest
	req.InvoiceRHash = invoice.RHash

	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return fmt.Errorf("update capacity request: %w", err)
	}

	uri := lightning.PaymentURI(req.PaymentRequest)
	qr, err := lightning.QRCodePNG(uri)
	if err != nil {
		return fmt.Errorf("render qr code: %w", err)
	}

	s.log.Debug("send payment request", "r_hash", req.InvoiceRHash)
	return s.send(protocol.NewPaymentRequest(req.PaymentRequest, uri, qr))
}

// ReceivePayment notifies the client that its invoice settled.
func (s *Session) ReceivePayment(ctx context.Context) error {
	return s.send(protocol.NewReceivePayment())
}

// ChannelOpen relays the channel-opening service's result: either the
// service's error or the funding transaction with an explorer link.
func (s *Session) ChannelOpen(ctx context.Context, serviceErr string, update *protocol.OpenChannelUpdate) error {
	if serviceErr != "" {
		return s.sendError(serviceErr)
	}
	if update == nil || update.ChanPending == nil || update.ChanPending.Txid == "" {
		return fmt.Errorf("channel_open update missing pending transaction")
	}
	txid := update.ChanPending.Txid
	return s.send(protocol.NewChannelOpen(lightning.ExplorerTxURL(txid), txid))
}
