package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lightning-power-users/lightning-power-users-website/internal/noderpc"
	"github.com/lightning-power-users/lightning-power-users-website/internal/session"
	"github.com/lightning-power-users/lightning-power-users-website/internal/store"
	"github.com/lightning-power-users/lightning-power-users-website/pkg/protocol"
)

const testPubkey = "0331f80652fb840239df8dc99205792bba2e559a05469915804c08420230e23c7c"

// stubRPC satisfies the node client with canned answers.
type stubRPC struct{}

func (stubRPC) GetInfo(ctx context.Context) (*noderpc.Info, error) {
	return &noderpc.Info{IdentityPubkey: testPubkey}, nil
}
func (stubRPC) ConnectPeer(ctx context.Context, pubkey, host string) error { return nil }
func (stubRPC) ListPeers(ctx context.Context) ([]noderpc.Peer, error)      { return nil, nil }
func (stubRPC) ListChannels(ctx context.Context) ([]noderpc.Channel, error) {
	return nil, nil
}
func (stubRPC) AddInvoice(ctx context.Context, value int64, memo string) (*noderpc.AddInvoiceResponse, error) {
	return nil, errors.New("not implemented")
}
func (stubRPC) LookupInvoice(ctx context.Context, rHash string) (*noderpc.Invoice, error) {
	return nil, errors.New("not implemented")
}
func (stubRPC) GetChanInfo(ctx context.Context, chanID uint64) (*noderpc.ChannelEdge, error) {
	return nil, errors.New("not implemented")
}

// frameRecorder captures frames written through a wsConn.
type frameRecorder struct {
	frames [][]byte
}

func (r *frameRecorder) WriteMessage(messageType int, data []byte) error {
	r.frames = append(r.frames, data)
	return nil
}

func newTestHub(t *testing.T) (*Hub, *session.Registry) {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	registry := session.NewRegistry(stubRPC{}, s, slog.Default(), session.RegistryOptions{
		LocalPubkey: testPubkey,
	})
	h := New(registry, slog.Default(), nil, Options{})
	return h, registry
}

func frame(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHandleFrameRegister(t *testing.T) {
	h, registry := newTestHub(t)
	rec := &frameRecorder{}
	conn := newWSConn(rec)
	owned := make(map[string]bool)
	sessionID := uuid.New().String()

	h.handleFrame(context.Background(), conn, frame(t, map[string]any{
		"session_id": sessionID,
		"action":     "register",
	}), owned)

	if !registry.Has(sessionID) {
		t.Fatal("session not created")
	}
	if !owned[sessionID] {
		t.Error("session not tracked for eviction")
	}
	if len(rec.frames) != 1 {
		t.Fatalf("wrote %d frames, want 1", len(rec.frames))
	}
	var reply struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(rec.frames[0], &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Action != protocol.ReplyRegistered {
		t.Errorf("action = %q, want registered", reply.Action)
	}
}

func TestHandleFrameDropsBadFrames(t *testing.T) {
	h, registry := newTestHub(t)

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("{not json")},
		{"missing session_id", []byte(`{"action":"register"}`)},
		{"session_id not a uuid", []byte(`{"session_id":"abc","action":"register"}`)},
		{"session_id wrong version", []byte(`{"session_id":"` + uuid.NewMD5(uuid.NameSpaceDNS, []byte("x")).String() + `","action":"register"}`)},
		{"sql in session_id", []byte(`{"session_id":"' OR 1=1 --","action":"register"}`)},
		{"unknown server_id", []byte(`{"session_id":"` + uuid.New().String() + `","server_id":"admin","action":"register"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &frameRecorder{}
			owned := make(map[string]bool)

			h.handleFrame(context.Background(), newWSConn(rec), tt.data, owned)

			if len(rec.frames) != 0 {
				t.Errorf("wrote %d frames, want 0", len(rec.frames))
			}
			if len(owned) != 0 {
				t.Errorf("owned = %v, want empty", owned)
			}
			if registry.Count() != 0 {
				t.Errorf("registry has %d sessions, want 0", registry.Count())
			}
		})
	}
}

func TestHandleFrameServiceDelivery(t *testing.T) {
	h, registry := newTestHub(t)
	clientRec := &frameRecorder{}
	owned := make(map[string]bool)
	sessionID := uuid.New().String()

	h.handleFrame(context.Background(), newWSConn(clientRec), frame(t, map[string]any{
		"session_id": sessionID,
		"action":     "register",
	}), owned)

	// The invoice watcher reports settlement over its own connection; the
	// notification lands on the client's connection.
	serviceRec := &frameRecorder{}
	serviceOwned := make(map[string]bool)
	h.handleFrame(context.Background(), newWSConn(serviceRec), frame(t, map[string]any{
		"session_id":   sessionID,
		"server_id":    "invoices",
		"invoice_data": map[string]string{"r_hash": strings.Repeat("ab", 32)},
	}), serviceOwned)

	if len(serviceRec.frames) != 0 {
		t.Errorf("service connection got %d frames, want 0", len(serviceRec.frames))
	}
	if len(serviceOwned) != 0 {
		t.Error("service connection must not own the session")
	}
	if len(clientRec.frames) != 2 {
		t.Fatalf("client got %d frames, want 2", len(clientRec.frames))
	}
	var reply struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(clientRec.frames[1], &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Action != protocol.ReplyReceivePayment {
		t.Errorf("action = %q, want receive_payment", reply.Action)
	}
	if !registry.Has(sessionID) {
		t.Error("session lost")
	}
}

func TestHandleFrameChannelsDelivery(t *testing.T) {
	h, _ := newTestHub(t)
	clientRec := &frameRecorder{}
	owned := make(map[string]bool)
	sessionID := uuid.New().String()

	h.handleFrame(context.Background(), newWSConn(clientRec), frame(t, map[string]any{
		"session_id": sessionID,
		"action":     "register",
	}), owned)

	txid := strings.Repeat("cd", 32)
	h.handleFrame(context.Background(), newWSConn(&frameRecorder{}), frame(t, map[string]any{
		"session_id": sessionID,
		"server_id":  "channels",
		"open_channel_update": map[string]any{
			"chan_pending": map[string]string{"txid": txid},
		},
	}), make(map[string]bool))

	if len(clientRec.frames) != 2 {
		t.Fatalf("client got %d frames, want 2", len(clientRec.frames))
	}
	var reply protocol.ChannelOpen
	if err := json.Unmarshal(clientRec.frames[1], &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Action != protocol.ReplyChannelOpen || reply.Txid != txid {
		t.Errorf("reply = %+v", reply)
	}
}

func TestSessionWSEndToEnd(t *testing.T) {
	h, registry := newTestHub(t)

	wsSrv := httptest.NewServer(http.HandlerFunc(h.HandleSessionWS))
	defer wsSrv.Close()

	url := "ws" + strings.TrimPrefix(wsSrv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	if err := conn.WriteJSON(map[string]any{
		"session_id": sessionID,
		"action":     "register",
	}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply struct {
		Action string `json:"action"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.Action != protocol.ReplyRegistered {
		t.Errorf("action = %q, want registered", reply.Action)
	}
	if !registry.Has(sessionID) {
		t.Error("session not created")
	}

	// Closing the connection evicts every session it owned.
	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for registry.Has(sessionID) {
		if time.Now().After(deadline) {
			t.Fatal("session not evicted after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
