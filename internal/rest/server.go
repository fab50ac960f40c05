// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package rest assembles the passkey HTTP server: storage backend,
// ceremony components, routes, and the expired-challenge sweep.
package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/passkey/http"
	"github.com/jeremyhahn/go-passkey/pkg/passkey/sqlite"
)

// Server represents the passkey REST API server.
type Server struct {
	server        *http.Server
	logger        *slog.Logger
	challenges    passkey.ChallengeStore
	sweepInterval time.Duration
	sweepCancel   context.CancelFunc
	sweepDone     chan struct{}
	store         *sqlite.Store
	addr          string
}

// NewServer builds the full server from configuration: stores, resolver,
// verifier, ceremonies, HTTP handler, and router.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.NewLogger()

	var challenges passkey.ChallengeStore
	var credentials passkey.CredentialStore
	var store *sqlite.Store

	switch cfg.Storage.Backend {
	case config.StorageBackendSQLite:
		var err error
		store, err = sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		challenges = store
		credentials = store
	default:
		challenges = passkey.NewMemoryChallengeStore()
		credentials = passkey.NewMemoryCredentialStore()
	}

	resolver, err := passkey.NewResolver(cfg.RelyingParties)
	if err != nil {
		return nil, err
	}

	verifier, err := passkey.NewVerifier(cfg.RelyingParties)
	if err != nil {
		return nil, err
	}

	params := passkey.CeremonyParams{
		Resolver:        resolver,
		Verifier:        verifier,
		ChallengeStore:  challenges,
		CredentialStore: credentials,
		Logger:          logger,
	}

	registration, err := passkey.NewRegistrationCeremony(params)
	if err != nil {
		return nil, err
	}
	authentication, err := passkey.NewAuthenticationCeremony(params)
	if err != nil {
		return nil, err
	}

	handler, err := passkeyhttp.NewHandler(passkeyhttp.HandlerParams{
		Registration:   registration,
		Authentication: authentication,
		Resolver:       resolver,
		Credentials:    credentials,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	if cfg.Metrics.Enabled {
		router.Use(metrics.HTTPMiddleware)
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	if cfg.Health.Enabled {
		router.Get(cfg.Health.Path, healthHandler)
	}
	router.Route("/api/v1/passkey", func(r chi.Router) {
		passkeyhttp.MountChi(r, handler)
	})

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprintf("%d", cfg.Server.Port))
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		logger:        logger,
		challenges:    challenges,
		sweepInterval: cfg.Challenges.SweepInterval,
		store:         store,
		addr:          addr,
	}, nil
}

// Start runs the HTTP listener and, when configured, the background
// expired-challenge sweep. It blocks until the server stops.
func (s *Server) Start() error {
	if s.sweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.sweepCancel = cancel
		s.sweepDone = make(chan struct{})
		go s.sweepLoop(ctx)
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server, the sweep loop, and the storage
// backend.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if s.sweepCancel != nil {
		s.sweepCancel()
		<-s.sweepDone
	}

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", "error", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the assembled router. Exposed for tests that serve
// the API through httptest instead of a real listener.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// sweepLoop periodically reclaims expired challenge rows. Reads already
// treat expired rows as absent, so the loop affects storage size only.
func (s *Server) sweepLoop(ctx context.Context) {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := s.challenges.DeleteExpired(ctx, now.UTC())
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("expired challenge sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Debug("expired challenges reclaimed", "count", removed)
			}
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// requestLogger logs each request at debug level after it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)
			logger.Debug("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.Status(),
				"duration", time.Since(start))
		})
	}
}
