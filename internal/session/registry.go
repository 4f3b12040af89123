package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lightning-power-users/lightning-power-users-website/internal/noderpc"
	"github.com/lightning-power-users/lightning-power-users-website/internal/store"
	"github.com/lightning-power-users/lightning-power-users-website/pkg/protocol"
)

// Registry maps session ids to live sessions. Sessions are created lazily on
// the first recognized client action and evicted when their connection
// closes. The map is guarded by a mutex: each connection is serviced by its
// own goroutine.
type Registry struct {
	rpc    noderpc.Client
	store  store.Store
	logger *slog.Logger

	localPubkey    string
	nodeURI        string
	connectTimeout time.Duration
	invoiceTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	LocalPubkey    string
	NodeURI        string
	ConnectTimeout time.Duration
	InvoiceTimeout time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(rpc noderpc.Client, s store.Store, logger *slog.Logger, opts RegistryOptions) *Registry {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 3 * time.Second
	}
	invoiceTimeout := opts.InvoiceTimeout
	if invoiceTimeout == 0 {
		invoiceTimeout = 10 * time.Second
	}
	return &Registry{
		rpc:            rpc,
		store:          s,
		logger:         logger.With("component", "sessions"),
		localPubkey:    opts.LocalPubkey,
		nodeURI:        opts.NodeURI,
		connectTimeout: connectTimeout,
		invoiceTimeout: invoiceTimeout,
		sessions:       make(map[string]*Session),
	}
}

// Dispatch routes a client-originated message to the owning session,
// creating the session on first contact. Messages naming an unrecognized
// action are dropped before any session state exists.
func (r *Registry) Dispatch(ctx context.Context, conn Conn, sessionID string, msg *protocol.Inbound) {
	if !recognized(msg.Action) {
		r.logger.Error("unrecognized action", "session_id", sessionID, "action", msg.Action)
		return
	}

	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		s = &Session{
			id:             sessionID,
			localPubkey:    r.localPubkey,
			conn:           conn,
			rpc:            r.rpc,
			store:          r.store,
			log:            r.logger.With("session_id", sessionID),
			nodeURI:        r.nodeURI,
			connectTimeout: r.connectTimeout,
			invoiceTimeout: r.invoiceTimeout,
		}
		r.sessions[sessionID] = s
	}
	r.mu.Unlock()

	r.invoke(ctx, s, msg)
}

// Deliver routes a service-originated message to an existing session. A
// missing session is logged and dropped: the durable workflow state lives in
// the store, and the deployment relies on sticky routing to bring a client
// and its service notifications to the same process.
func (r *Registry) Deliver(ctx context.Context, sessionID string, msg *protocol.Inbound) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	r.mu.Unlock()

	if !ok {
		r.logger.Error("no session for service message",
			"session_id", sessionID, "action", msg.Action)
		return
	}
	r.invoke(ctx, s, msg)
}

// invoke runs one handler, containing any failure to this session: errors
// and panics are logged with full context and produce no reply.
func (r *Registry) invoke(ctx context.Context, s *Session, msg *protocol.Inbound) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panicked",
				"session_id", s.id, "action", msg.Action, "panic", p)
		}
	}()

	var err error
	switch msg.Action {
	case protocol.ActionRegister:
		err = s.Register(ctx)
	case protocol.ActionConnectToPeer:
		err = s.ConnectToPeer(ctx, msg.RemotePubkeyInput)
	case protocol.ActionConfirmCapacity:
		err = s.ConfirmCapacity(ctx, msg.FormData)
	case protocol.ActionChainFee:
		err = s.ChainFee(ctx, msg.FormData)
	case protocol.ActionReceivePayment:
		err = s.ReceivePayment(ctx)
	case protocol.ActionChannelOpen:
		err = s.ChannelOpen(ctx, msg.Error, msg.OpenChannelUpdate)
	}
	if err != nil {
		r.logger.Error("handler failed",
			"session_id", s.id, "action", msg.Action, "error", err)
	}
}

func recognized(a protocol.Action) bool {
	switch a {
	case protocol.ActionRegister, protocol.ActionConnectToPeer,
		protocol.ActionConfirmCapacity, protocol.ActionChainFee,
		protocol.ActionReceivePayment, protocol.ActionChannelOpen:
		return true
	}
	return false
}

// Evict removes a session, typically because its connection closed.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// Has reports whether a live session exists for the id.
func (r *Registry) Has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
