// Package store persists capacity-request workflow records and provides
// SQLite and PostgreSQL implementations.
package store

import (
	"context"
	"time"
)

// Store is the persistence interface for workflow records. Records are
// append-oriented: each new capacity request for a session inserts a row and
// later workflow steps update the most recent one. Only the latest row per
// session is authoritative; history is retained.
type Store interface {
	CreateRequest(ctx context.Context, req *CapacityRequest) error
	LatestRequest(ctx context.Context, sessionID string) (*CapacityRequest, error)
	UpdateRequest(ctx context.Context, req *CapacityRequest) error
	RequestByInvoiceHash(ctx context.Context, rHash string) (*CapacityRequest, error)

	// Health
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CapacityRequest is one durable capacity-request workflow instance, mutated
// incrementally by successive session handlers.
type CapacityRequest struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	RemotePubkey string `json:"remote_pubkey"`
	RemoteHost   string `json:"remote_host,omitempty"`

	// Set by the capacity confirmation step.
	Capacity        int64   `json:"capacity,omitempty"`
	CapacityFeeRate float64 `json:"capacity_fee_rate,omitempty"`
	CapacityFee     int64   `json:"capacity_fee,omitempty"`

	// Set by the chain-fee step.
	TransactionFeeRate int64  `json:"transaction_fee_rate,omitempty"`
	TransactionFee     int64  `json:"transaction_fee,omitempty"`
	TotalFee           int64  `json:"total_fee,omitempty"`
	PaymentRequest     string `json:"payment_request,omitempty"`
	InvoiceRHash       string `json:"invoice_r_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
