// Package noderpc is the boundary to the operator's Lightning node. The
// coordination core talks to the node only through the Client interface; the
// REST implementation in this package targets lnd's REST API.
package noderpc

import "context"

// Info is the node's own identity summary.
type Info struct {
	IdentityPubkey string `json:"identity_pubkey"`
	Alias          string `json:"alias"`
}

// Peer is a currently connected network peer.
type Peer struct {
	Pubkey  string `json:"pub_key"`
	Address string `json:"address"`
}

// Channel is one of the node's channels as reported by the node. ChanID is
// zero while the funding transaction is unconfirmed.
type Channel struct {
	RemotePubkey  string `json:"remote_pubkey"`
	ChanID        uint64 `json:"chan_id,string"`
	Capacity      int64  `json:"capacity,string"`
	LocalBalance  int64  `json:"local_balance,string"`
	RemoteBalance int64  `json:"remote_balance,string"`
	CommitFee     int64  `json:"commit_fee,string"`
	Active        bool   `json:"active"`
}

// Invoice is a created or settled invoice. RHash is hex-encoded.
type Invoice struct {
	RHash          string
	PaymentRequest string
	Memo           string
	Value          int64
	Settled        bool
}

// AddInvoiceResponse is the result of creating an invoice. RHash is
// hex-encoded.
type AddInvoiceResponse struct {
	RHash          string
	PaymentRequest string
}

// ChannelEdge is the public graph record for an open channel.
type ChannelEdge struct {
	ChannelID uint64 `json:"channel_id,string"`
	Capacity  int64  `json:"capacity,string"`
	Node1Pub  string `json:"node1_pub"`
	Node2Pub  string `json:"node2_pub"`
}

// Client is the node RPC surface the coordination core depends on. Every
// call honors the context deadline; the node is a remote service with its own
// failure modes and callers must expect errors on any call.
type Client interface {
	GetInfo(ctx context.Context) (*Info, error)
	ConnectPeer(ctx context.Context, pubkey, host string) error
	ListPeers(ctx context.Context) ([]Peer, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	AddInvoice(ctx context.Context, value int64, memo string) (*AddInvoiceResponse, error)
	LookupInvoice(ctx context.Context, rHash string) (*Invoice, error)
	GetChanInfo(ctx context.Context, chanID uint64) (*ChannelEdge, error)
}
