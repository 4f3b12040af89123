package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite store and runs migrations.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	// For in-memory databases, use shared cache so all connections in the pool
	// see the same data. Without this, each pooled connection gets a separate
	// empty database.
	if dsn == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrent read/write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS inbound_capacity_requests (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			remote_pubkey TEXT NOT NULL,
			remote_host TEXT NOT NULL DEFAULT '',
			capacity INTEGER NOT NULL DEFAULT 0,
			capacity_fee_rate REAL NOT NULL DEFAULT 0,
			capacity_fee INTEGER NOT NULL DEFAULT 0,
			transaction_fee_rate INTEGER NOT NULL DEFAULT 0,
			transaction_fee INTEGER NOT NULL DEFAULT 0,
			total_fee INTEGER NOT NULL DEFAULT 0,
			payment_request TEXT NOT NULL DEFAULT '',
			invoice_r_hash TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_icr_session_updated
			ON inbound_capacity_requests(session_id, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_icr_invoice_r_hash
			ON inbound_capacity_requests(invoice_r_hash)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const requestColumns = `id, session_id, remote_pubkey, remote_host,
	capacity, capacity_fee_rate, capacity_fee,
	transaction_fee_rate, transaction_fee, total_fee,
	payment_request, invoice_r_hash, created_at, updated_at`

func scanRequest(row *sql.Row) (*CapacityRequest, error) {
	var r CapacityRequest
	err := row.Scan(
		&r.ID, &r.SessionID, &r.RemotePubkey, &r.RemoteHost,
		&r.Capacity, &r.CapacityFeeRate, &r.CapacityFee,
		&r.TransactionFeeRate, &r.TransactionFee, &r.TotalFee,
		&r.PaymentRequest, &r.InvoiceRHash, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) CreateRequest(ctx context.Context, req *CapacityRequest) error {
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inbound_capacity_requests
			(id, session_id, remote_pubkey, remote_host,
			 capacity, capacity_fee_rate, capacity_fee,
			 transaction_fee_rate, transaction_fee, total_fee,
			 payment_request, invoice_r_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.SessionID, req.RemotePubkey, req.RemoteHost,
		req.Capacity, req.CapacityFeeRate, req.CapacityFee,
		req.TransactionFeeRate, req.TransactionFee, req.TotalFee,
		req.PaymentRequest, req.InvoiceRHash, req.CreatedAt, req.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) LatestRequest(ctx context.Context, sessionID string) (*CapacityRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM inbound_capacity_requests
		 WHERE session_id = ?
		 ORDER BY updated_at DESC, created_at DESC LIMIT 1`,
		sessionID,
	)
	return scanRequest(row)
}

func (s *SQLiteStore) UpdateRequest(ctx context.Context, req *CapacityRequest) error {
	req.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE inbound_capacity_requests SET
			remote_pubkey = ?, remote_host = ?,
			capacity = ?, capacity_fee_rate = ?, capacity_fee = ?,
			transaction_fee_rate = ?, transaction_fee = ?, total_fee = ?,
			payment_request = ?, invoice_r_hash = ?, updated_at = ?
		 WHERE id = ?`,
		req.RemotePubkey, req.RemoteHost,
		req.Capacity, req.CapacityFeeRate, req.CapacityFee,
		req.TransactionFeeRate, req.TransactionFee, req.TotalFee,
		req.PaymentRequest, req.InvoiceRHash, req.UpdatedAt,
		req.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("capacity request %s not found", req.ID)
	}
	return nil
}

func (s *SQLiteStore) RequestByInvoiceHash(ctx context.Context, rHash string) (*CapacityRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM inbound_capacity_requests
		 WHERE invoice_r_hash = ?
		 ORDER BY updated_at DESC LIMIT 1`,
		rHash,
	)
	return scanRequest(row)
}
