package lightning

import (
	"context"
	"log/slog"

	"github.com/lightning-power-users/lightning-power-users-website/internal/noderpc"
)

// Channel is the valuation read model over one of the node's channels.
// ChanID is nil while the funding transaction is unconfirmed.
type Channel struct {
	ChanID        *uint64
	RemotePubkey  string
	Capacity      int64
	CommitFee     int64
	LocalBalance  int64
	RemoteBalance int64
	Active        bool
}

// NewChannel builds the read model from the node's channel record.
func NewChannel(raw noderpc.Channel) Channel {
	ch := Channel{
		RemotePubkey:  raw.RemotePubkey,
		Capacity:      raw.Capacity,
		CommitFee:     raw.CommitFee,
		LocalBalance:  raw.LocalBalance,
		RemoteBalance: raw.RemoteBalance,
		Active:        raw.Active,
	}
	if raw.ChanID != 0 {
		id := raw.ChanID
		ch.ChanID = &id
	}
	return ch
}

// AvailableCapacity is the capacity actually usable for payments.
func (c Channel) AvailableCapacity() int64 {
	return c.Capacity - c.CommitFee
}

// BalancePct is the local balance as a percentage of available capacity.
// Returns 0 when available capacity is zero.
func (c Channel) BalancePct() int64 {
	available := c.AvailableCapacity()
	if available == 0 {
		return 0
	}
	return c.LocalBalance * 100 / available
}

// IsMine reports whether the balance sits overwhelmingly on the local side.
func (c Channel) IsMine() bool {
	return c.BalancePct() > 80
}

// IsYours reports whether the balance sits overwhelmingly on the remote side.
func (c Channel) IsYours() bool {
	return c.BalancePct() < 20
}

// IsPending reports whether the funding transaction has not confirmed yet.
func (c Channel) IsPending() bool {
	return c.ChanID == nil
}

// Edge attaches the public graph record for an open channel; pending
// channels have no edge. Lookup failures are logged and return nil rather
// than failing the caller, matching the read-only nature of the model.
func (c Channel) Edge(ctx context.Context, rpc noderpc.Client, logger *slog.Logger) *noderpc.ChannelEdge {
	if c.ChanID == nil {
		return nil
	}
	edge, err := rpc.GetChanInfo(ctx, *c.ChanID)
	if err != nil {
		logger.Error("get channel info failed", "chan_id", *c.ChanID, "error", err)
		return nil
	}
	return edge
}

// PeerChannelTotals aggregates the node's existing channels with one peer.
// Balance is the ratio of local balance to total capacity; it is nil when
// the total capacity is zero.
type PeerChannelTotals struct {
	Count    int      `json:"count"`
	Capacity int64    `json:"capacity"`
	Balance  *float64 `json:"balance"`
}

// PeerTotals summarizes channels with remotePubkey, or nil when there are
// none.
func PeerTotals(channels []noderpc.Channel, remotePubkey string) *PeerChannelTotals {
	var totals PeerChannelTotals
	var localBalance int64
	for _, raw := range channels {
		if raw.RemotePubkey != remotePubkey {
			continue
		}
		totals.Count++
		totals.Capacity += raw.Capacity
		localBalance += raw.LocalBalance
	}
	if totals.Count == 0 {
		return nil
	}
	if totals.Capacity > 0 {
		ratio := float64(localBalance) / float64(totals.Capacity)
		totals.Balance = &ratio
	}
	return &totals
}
