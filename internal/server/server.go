// Package server exposes the credential verifier over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	ldapauth "github.com/netresearch/simple-ldap-auth"
	"github.com/netresearch/simple-ldap-auth/internal/config"
	"github.com/netresearch/simple-ldap-auth/internal/metrics"
)

// LoginRoute is the path the login UI posts to
const LoginRoute = "/api/auth/ldap"

// Authenticator verifies a username and password. *ldapauth.Verifier
// satisfies it.
type Authenticator interface {
	Verify(ctx context.Context, username, password string) (ldapauth.Outcome, error)
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Logger   *slog.Logger
	Recorder metrics.Recorder
	// MetricsHandler is mounted on /metrics when set
	MetricsHandler http.Handler
	// SlowRequest marks requests at least this slow as warnings in the access log
	SlowRequest time.Duration
}

// Server is a thin wrapper over chi and http.Server.
type Server struct {
	addr           string
	auth           Authenticator
	logger         *slog.Logger
	recorder       metrics.Recorder
	requestTimeout time.Duration
	maxBodyBytes   int64
	mux            *chi.Mux
	srv            *http.Server
}

// New builds a Server for cfg with all routes mounted.
func New(cfg config.HTTPConfig, auth Authenticator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NewNoopMetrics()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	s := &Server{
		addr:           cfg.Addr,
		auth:           auth,
		logger:         opts.Logger.With(slog.String("component", "http")),
		recorder:       opts.Recorder,
		requestTimeout: cfg.RequestTimeout,
		maxBodyBytes:   cfg.MaxBodyBytes,
		mux:            chi.NewRouter(),
	}
	s.routes(cfg.CORSOrigins, opts)

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// covers the verification timeout plus writing the response
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

func (s *Server) routes(origins []string, opts Options) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.mux.Use(
		requestID,
		accessLog(s.logger, opts.SlowRequest),
		instrument(s.recorder),
		// inside accessLog and instrument so recovered panics are logged and counted as 500
		recoverJSON(s.logger),
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         300,
		}),
	)

	s.mux.Get("/healthz", s.handleHealth)
	s.mux.Post(LoginRoute, s.handleLDAPLogin)
	if opts.MetricsHandler != nil {
		s.mux.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	s.mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, authResponse{Success: false, Message: "not found"})
	})
	s.mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, authResponse{Success: false, Message: "method not allowed"})
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Run listens on the configured address and blocks until the server is shut
// down. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }

	s.logger.Info("http_listening", slog.String("addr", ln.Addr().String()))
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http_shutting_down")
	return s.srv.Shutdown(ctx)
}
