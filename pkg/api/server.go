package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/cardstage/pkg/api/handlers"
	"github.com/cbodonnell/cardstage/pkg/api/middleware"
	authproviders "github.com/cbodonnell/cardstage/pkg/auth/providers"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/registry"
	"github.com/cbodonnell/cardstage/pkg/repositories"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port int
	TLS  *TLSConfig
	// AuthProvider protects every route but /healthz when set.
	AuthProvider authproviders.AuthProvider
	Registry     registry.Registry
	Repository   repositories.Repository
}

// NewAPIServer creates a new http.Server serving the status of sessions and
// the history of matches
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.HandleFunc("/healthz", handlers.HandleHealthz()).Methods(http.MethodGet, http.MethodOptions)

	protected := r.NewRoute().Subrouter()
	if opts.AuthProvider != nil {
		protected.Use(middleware.NewAuthMiddleware(opts.AuthProvider))
	}
	protected.HandleFunc("/sessions", handlers.HandleListSessions(opts.Registry)).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{sessionID}", handlers.HandleGetSession(opts.Registry)).Methods(http.MethodGet)
	protected.HandleFunc("/matches", handlers.HandleListMatches(opts.Repository)).Methods(http.MethodGet)
	protected.HandleFunc("/matches/{sessionID}", handlers.HandleGetMatch(opts.Repository)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Handler returns the routes of the server
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the server is stopped
func (s *APIServer) Start() error {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return nil
		}
		return fmt.Errorf("API server error: %v", err)
	}
	return nil
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
