package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testPubkey = "0331f80652fb840239df8dc99205792bba2e559a05469915804c08420230e23c7c"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// createTestRequest inserts a capacity request and returns it.
func createTestRequest(t *testing.T, s *SQLiteStore, sessionID string) *CapacityRequest {
	t.Helper()
	req := &CapacityRequest{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		RemotePubkey: testPubkey,
		RemoteHost:   "1.2.3.4:9735",
	}
	if err := s.CreateRequest(context.Background(), req); err != nil {
		t.Fatalf("createTestRequest: %v", err)
	}
	return req
}

func TestCreateAndLatestRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sessionID := uuid.New().String()

	created := createTestRequest(t, s, sessionID)

	got, err := s.LatestRequest(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a request")
	}
	if got.ID != created.ID {
		t.Errorf("ID = %s, want %s", got.ID, created.ID)
	}
	if got.RemotePubkey != testPubkey {
		t.Errorf("RemotePubkey = %s", got.RemotePubkey)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set on insert")
	}
}

func TestLatestRequestAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LatestRequest(context.Background(), uuid.New().String())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown session, got %+v", got)
	}
}

func TestUpdateRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sessionID := uuid.New().String()

	req := createTestRequest(t, s, sessionID)
	req.Capacity = 2_000_000
	req.CapacityFeeRate = 0.01
	req.CapacityFee = 20_000
	req.TransactionFeeRate = 10
	req.TransactionFee = 5_000
	req.TotalFee = 25_000
	req.PaymentRequest = "lnbc1pexample"
	req.InvoiceRHash = strings.Repeat("ab", 32)

	if err := s.UpdateRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	got, err := s.LatestRequest(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Capacity != 2_000_000 || got.CapacityFee != 20_000 {
		t.Errorf("capacity fields not persisted: %+v", got)
	}
	if got.TotalFee != 25_000 || got.PaymentRequest != "lnbc1pexample" {
		t.Errorf("fee fields not persisted: %+v", got)
	}
	if got.CapacityFeeRate != 0.01 {
		t.Errorf("CapacityFeeRate = %v, want 0.01", got.CapacityFeeRate)
	}
}

func TestUpdateUnknownRequest(t *testing.T) {
	s := newTestStore(t)
	req := &CapacityRequest{ID: uuid.New().String(), SessionID: uuid.New().String()}
	if err := s.UpdateRequest(context.Background(), req); err == nil {
		t.Error("expected error updating a request that was never created")
	}
}

func TestLatestWinsHistoryRetained(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sessionID := uuid.New().String()

	first := createTestRequest(t, s, sessionID)
	time.Sleep(5 * time.Millisecond)
	second := createTestRequest(t, s, sessionID)

	got, err := s.LatestRequest(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != second.ID {
		t.Errorf("latest = %s, want %s", got.ID, second.ID)
	}

	// Updating the latest row must not resurrect the older one.
	second.Capacity = 500_000
	if err := s.UpdateRequest(ctx, second); err != nil {
		t.Fatal(err)
	}
	got, err = s.LatestRequest(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != second.ID || got.Capacity != 500_000 {
		t.Errorf("latest after update = %+v", got)
	}

	// The first row is history, still reachable by its invoice hash once set.
	first.InvoiceRHash = strings.Repeat("cd", 32)
	if err := s.UpdateRequest(ctx, first); err != nil {
		t.Fatal(err)
	}
	byHash, err := s.RequestByInvoiceHash(ctx, first.InvoiceRHash)
	if err != nil {
		t.Fatal(err)
	}
	if byHash == nil || byHash.ID != first.ID {
		t.Errorf("RequestByInvoiceHash = %+v, want id %s", byHash, first.ID)
	}
}

func TestRequestByInvoiceHashAbsent(t *testing.T) {
	s := newTestStore(t)
	got, err := s.RequestByInvoiceHash(context.Background(), strings.Repeat("00", 32))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSessionsIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := uuid.New().String()
	b := uuid.New().String()
	reqA := createTestRequest(t, s, a)
	reqB := createTestRequest(t, s, b)

	gotA, err := s.LatestRequest(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	gotB, err := s.LatestRequest(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if gotA.ID != reqA.ID || gotB.ID != reqB.ID {
		t.Errorf("cross-session leak: a=%s b=%s", gotA.ID, gotB.ID)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}
