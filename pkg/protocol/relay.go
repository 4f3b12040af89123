package protocol

// Relay-topology messages: the web app announces an inbound capacity request
// together with its invoice, the invoice watcher announces settlement, and
// the relay turns the two into an open_channel command for the
// channel-opening service.

// Service message type values seen on the relay endpoint.
const (
	TypeInboundCapacityRequest = "inbound_capacity_request"
	TypeInvoicePaid            = "invoice_paid"
	TypeOpenChannel            = "open_channel"
)

// InvoiceRef identifies an invoice by its payment hash (hex).
type InvoiceRef struct {
	RHash string `json:"r_hash"`
}

// RequestForm is the web app's snapshot of the user's form submission.
type RequestForm struct {
	Capacity           string `json:"capacity"`
	TransactionFeeRate string `json:"transaction_fee_rate"`
}

// InvoicePackage is the webapp's inbound_capacity_request frame, held by the
// relay until the matching invoice settles.
type InvoicePackage struct {
	ServerID              ServiceID   `json:"server_id"`
	Type                  string      `json:"type"`
	UserID                string      `json:"user_id"`
	Invoice               InvoiceRef  `json:"invoice"`
	ParsedPubkey          string      `json:"parsed_pubkey"`
	ReciprocationCapacity int64       `json:"reciprocation_capacity,omitempty"`
	FormData              RequestForm `json:"form_data"`
}

// InvoicePaid is the invoice watcher's settlement notification.
type InvoicePaid struct {
	ServerID    ServiceID   `json:"server_id"`
	Type        string      `json:"type"`
	InvoiceData InvoiceData `json:"invoice_data"`
}

// InvoiceData is the settled invoice as reported by the watcher. Extra
// watcher fields are preserved by the relay when forwarding to the user, so
// only the hash is modeled here.
type InvoiceData struct {
	RHash string `json:"r_hash"`
}

// OpenChannelCommand instructs the channel-opening service to fund a channel.
type OpenChannelCommand struct {
	ServerID           ServiceID `json:"server_id"`
	UserID             string    `json:"user_id"`
	Type               string    `json:"type"`
	RemotePubkey       string    `json:"remote_pubkey"`
	LocalFundingAmount int64     `json:"local_funding_amount"`
	SatPerByte         int64     `json:"sat_per_byte"`
}
