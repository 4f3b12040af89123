package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a new PostgreSQL store and runs migrations.
func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS inbound_capacity_requests (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			remote_pubkey TEXT NOT NULL,
			remote_host TEXT NOT NULL DEFAULT '',
			capacity BIGINT NOT NULL DEFAULT 0,
			capacity_fee_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			capacity_fee BIGINT NOT NULL DEFAULT 0,
			transaction_fee_rate BIGINT NOT NULL DEFAULT 0,
			transaction_fee BIGINT NOT NULL DEFAULT 0,
			total_fee BIGINT NOT NULL DEFAULT 0,
			payment_request TEXT NOT NULL DEFAULT '',
			invoice_r_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req *CapacityRequest) error {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		req.ID, req.SessionID, req.RemotePubkey, req.RemoteHost,
		req.Capacity, req.CapacityFeeRate, req.CapacityFee,
		req.TransactionFeeRate, req.TransactionFee, req.TotalFee,
		req.PaymentRequest, req.InvoiceRHash, req.CreatedAt, req.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) scanRequest(row *sql.Row) (*CapacityRequest, error) {
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

func (s *PostgresStore) LatestRequest(ctx context.Context, sessionID string) (*CapacityRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, remote_pubkey, remote_host,
			capacity, capacity_fee_rate, capacity_fee,
			transaction_fee_rate, transaction_fee, total_fee,
			payment_request, invoice_r_hash, created_at, updated_at
		 FROM inbound_capacity_requests
		 WHERE session_id = $1
		 ORDER BY updated_at DESC, created_at DESC LIMIT 1`,
		sessionID,
	)
	return s.scanRequest(row)
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, req *CapacityRequest) error {
	req.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE inbound_capacity_requests SET
			remote_pubkey = $1, remote_host = $2,
			capacity = $3, capacity_fee_rate = $4, capacity_fee = $5,
			transaction_fee_rate = $6, transaction_fee = $7, total_fee = $8,
			payment_request = $9, invoice_r_hash = $10, updated_at = $11
		 WHERE id = $12`,
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

func (s *PostgresStore) RequestByInvoiceHash(ctx context.Context, rHash string) (*CapacityRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, remote_pubkey, remote_host,
			capacity, capacity_fee_rate, capacity_fee,
			transaction_fee_rate, transaction_fee, total_fee,
			payment_request, invoice_r_hash, created_at, updated_at
		 FROM inbound_capacity_requests
		 WHERE invoice_r_hash = $1
		 ORDER BY updated_at DESC LIMIT 1`,
		rHash,
	)
	return s.scanRequest(row)
}
