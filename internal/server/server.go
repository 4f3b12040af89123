// Package server is the main orchestrator that ties all components together.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lightning-power-users/lightning-power-users-website/internal/config"
	"github.com/lightning-power-users/lightning-power-users-website/internal/noderpc"
	"github.com/lightning-power-users/lightning-power-users-website/internal/router"
	"github.com/lightning-power-users/lightning-power-users-website/internal/session"
	"github.com/lightning-power-users/lightning-power-users-website/internal/store"
)

// Server is the main channel-opening server process.
type Server struct {
	cfg       *config.Config
	store     store.Store
	rpc       noderpc.Client
	registry  *session.Registry
	hub       *router.Hub
	relay     *router.Relay
	logger    *slog.Logger
	startTime time.Time
	mux       *chi.Mux
}

// New creates a server from configuration. It connects to the Lightning node
// once at startup to learn the local identity pubkey.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := store.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rpc, err := noderpc.NewRESTClient(noderpc.RESTOptions{
		BaseURL:      cfg.Node.RESTURL,
		TLSCertPath:  cfg.Node.TLSCertPath,
		MacaroonPath: cfg.Node.MacaroonPath,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init node client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	info, err := rpc.GetInfo(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("get node info: %w", err)
	}
	logger.Info("connected to lightning node",
		"pubkey", info.IdentityPubkey, "alias", info.Alias)

	registry := session.NewRegistry(rpc, db, logger, session.RegistryOptions{
		LocalPubkey:    info.IdentityPubkey,
		NodeURI:        cfg.Node.URI,
		ConnectTimeout: cfg.Session.ConnectTimeout.Duration,
		InvoiceTimeout: cfg.Session.InvoiceTimeout.Duration,
	})

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	metrics := router.NewMetrics(promReg, func() float64 {
		return float64(registry.Count())
	})

	hub := router.New(registry, logger, metrics, router.Options{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MaxMessageBytes:   cfg.Session.MaxMessageBytes,
		MessagesPerSecond: cfg.RateLimit.MessagesPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})
	relay := router.NewRelay(logger, metrics, cfg.Server.AllowedOrigins)

	s := &Server{
		cfg:       cfg,
		store:     db,
		rpc:       rpc,
		registry:  registry,
		hub:       hub,
		relay:     relay,
		logger:    logger.With("component", "server"),
		startTime: time.Now(),
	}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(chimw.RealIP)

	mux.Get("/healthz", s.handleHealthz)
	mux.Get("/readyz", s.handleReadyz)
	mux.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	mux.Get("/ws", hub.HandleSessionWS)
	mux.Get("/relay", relay.HandleRelayWS)

	s.mux = mux
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler { return s.mux }

// Run starts the HTTP server and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Server.Addr)
		if s.cfg.Server.TLSCert != "" && s.cfg.Server.TLSKey != "" {
			errCh <- srv.ListenAndServeTLS(s.cfg.Server.TLSCert, s.cfg.Server.TLSKey)
		} else {
			s.logger.Warn("TLS not configured, running without encryption (development only)")
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			_ = srv.Close()
		} else {
			s.logger.Info("http server stopped gracefully")
		}

		s.logger.Info("closing store")
		_ = s.store.Close()
		return nil

	case err := <-errCh:
		_ = s.store.Close()
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"sessions": s.registry.Count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
