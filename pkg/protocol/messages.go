// Package protocol defines the wire messages exchanged over the front-facing
// WebSocket endpoint between browser clients, backend services and the server.
//
// All frames are flat JSON objects. Client-originated frames carry a
// session_id (or user_id on the relay endpoint) and an action; frames from
// trusted backend services additionally carry one of the enumerated server_id
// values. Server-to-client replies carry an action naming the reply kind.
package protocol

import "encoding/json"

// ServiceID identifies a trusted backend service. Any frame carrying a
// server_id outside this set is dropped by the router.
type ServiceID string

const (
	ServiceMain     ServiceID = "main"     // channel-opening command consumer
	ServiceInvoices ServiceID = "invoices" // invoice watcher
	ServiceChannels ServiceID = "channels" // channel-opening service
	ServiceWebApp   ServiceID = "webapp"   // web front end
)

// Known reports whether id is one of the enumerated backend services.
func (id ServiceID) Known() bool {
	switch id {
	case ServiceMain, ServiceInvoices, ServiceChannels, ServiceWebApp:
		return true
	}
	return false
}

// Action names a recognized client action or service notification. The set is
// closed: the session registry dispatches on it at compile time and drops
// anything else.
type Action string

const (
	// Client actions.
	ActionRegister        Action = "register"
	ActionConnectToPeer   Action = "connect_to_peer"
	ActionConfirmCapacity Action = "confirm_capacity"
	ActionChainFee        Action = "chain_fee"

	// Service notifications resuming a session out-of-band.
	ActionReceivePayment Action = "receive_payment"
	ActionChannelOpen    Action = "channel_open"
)

// Reply action values sent from server to client.
const (
	ReplyRegistered        = "registered"
	ReplyConnected         = "connected"
	ReplyErrorMessage      = "error_message"
	ReplyConfirmedCapacity = "confirmed_capacity"
	ReplyPaymentRequest    = "payment_request"
	ReplyReceivePayment    = "receive_payment"
	ReplyChannelOpen       = "channel_open"
)

// Inbound is the superset decode target for every frame arriving at the
// server. Which fields are meaningful depends on the sender classification.
type Inbound struct {
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	ServerID  ServiceID `json:"server_id,omitempty"`
	Action    Action    `json:"action,omitempty"`
	Type      string    `json:"type,omitempty"`

	// Client action payloads.
	RemotePubkeyInput string   `json:"remote_pubkey_input,omitempty"`
	FormData          FormData `json:"form_data,omitempty"`

	// Service payloads.
	InvoiceData       json.RawMessage    `json:"invoice_data,omitempty"`
	Error             string             `json:"error,omitempty"`
	OpenChannelUpdate *OpenChannelUpdate `json:"open_channel_update,omitempty"`
}

// OpenChannelUpdate mirrors the channel-opening service's report of a
// funding transaction in flight.
type OpenChannelUpdate struct {
	ChanPending *ChanPending `json:"chan_pending,omitempty"`
}

// ChanPending carries the funding transaction id of a pending channel.
type ChanPending struct {
	Txid string `json:"txid"`
}

// --- Server → client replies ---

// Registered acknowledges a register action.
type Registered struct {
	Action string `json:"action"`
}

// NewRegistered builds the registered reply.
func NewRegistered() Registered {
	return Registered{Action: ReplyRegistered}
}

// Connected acknowledges a successful peer connection. Data summarizes any
// pre-existing channels with the peer and is null when there are none.
type Connected struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// NewConnected builds the connected reply.
func NewConnected(data any) Connected {
	return Connected{Action: ReplyConnected, Data: data}
}

// ErrorMessage carries a user-facing error to the client.
type ErrorMessage struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

// NewErrorMessage builds the error_message reply.
func NewErrorMessage(err string) ErrorMessage {
	return ErrorMessage{Action: ReplyErrorMessage, Error: err}
}

// ConfirmedCapacity acknowledges a confirm_capacity action.
type ConfirmedCapacity struct {
	Action string `json:"action"`
}

// NewConfirmedCapacity builds the confirmed_capacity reply.
func NewConfirmedCapacity() ConfirmedCapacity {
	return ConfirmedCapacity{Action: ReplyConfirmedCapacity}
}

// PaymentRequest delivers the invoice for the total fee: the raw payment
// request, a lightning: URI and a base64-encoded QR code PNG.
type PaymentRequest struct {
	Action         string `json:"action"`
	PaymentRequest string `json:"payment_request"`
	URI            string `json:"uri"`
	QRCode         string `json:"qrcode"`
}

// NewPaymentRequest builds the payment_request reply.
func NewPaymentRequest(payreq, uri, qrcode string) PaymentRequest {
	return PaymentRequest{
		Action:         ReplyPaymentRequest,
		PaymentRequest: payreq,
		URI:            uri,
		QRCode:         qrcode,
	}
}

// ReceivePayment notifies the client that its invoice was settled.
type ReceivePayment struct {
	Action string `json:"action"`
}

// NewReceivePayment builds the receive_payment reply.
func NewReceivePayment() ReceivePayment {
	return ReceivePayment{Action: ReplyReceivePayment}
}

// ChannelOpen notifies the client that the funding transaction was broadcast.
type ChannelOpen struct {
	Action string `json:"action"`
	URL    string `json:"url"`
	Txid   string `json:"txid"`
}

// NewChannelOpen builds the channel_open reply.
func NewChannelOpen(url, txid string) ChannelOpen {
	return ChannelOpen{Action: ReplyChannelOpen, URL: url, Txid: txid}
}
