package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	authproviders "github.com/cbodonnell/cardstage/pkg/auth/providers"
	"github.com/cbodonnell/cardstage/pkg/clients"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/cbodonnell/cardstage/pkg/session"
	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
)

// Lobby seats websocket connections in sessions.
type Lobby interface {
	Join(conn session.Connection, token string, uid string) (*clients.Ticket, error)
}

// Server accepts participant websockets on /ws. A reconnect token can be
// passed as the token query parameter; with an auth provider configured, an ID
// token is required as a bearer token or the auth query parameter.
type Server struct {
	server *http.Server
	tls    *TLSConfig
	lobby  Lobby
	auth   authproviders.AuthProvider
	link   LinkOptions
	logger *log.Logger
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewServerOptions struct {
	Port         int
	TLS          *TLSConfig
	Lobby        Lobby
	AuthProvider authproviders.AuthProvider
	Link         LinkOptions
	Logger       *log.Logger
}

func NewServer(opts NewServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		tls:    opts.TLS,
		lobby:  opts.Lobby,
		auth:   opts.AuthProvider,
		link:   opts.Link.withDefaults(),
		logger: logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shut down websocket server: %v", err)
		}
	}()

	var err error
	if s.tls != nil {
		s.logger.Info("Websocket server listening on %s with TLS", s.server.Addr)
		err = s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
	} else {
		s.logger.Info("Websocket server listening on %s", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("Websocket server closed")
		return nil
	}
	return fmt.Errorf("websocket server error: %v", err)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	uid, err := s.authenticate(r)
	if err != nil {
		s.logger.Debug("Rejected websocket from %s: %v", r.RemoteAddr, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Error("Failed to accept websocket: %v", err)
		return
	}
	conn.SetReadLimit(messages.MessageBufferSize)

	logger := s.logger.With("remote", r.RemoteAddr)
	link := NewLink(conn, s.link, logger)
	ticket, err := s.lobby.Join(link, r.URL.Query().Get("token"), uid)
	if err != nil {
		logger.Info("Failed to join a session: %v", err)
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}

	logger = logger.With("session", ticket.SessionID).With("participant", ticket.Participant)
	link.logger = logger
	logger.Debug("Link opened")
	if err := link.Run(r.Context(), ticket); err != nil {
		logger.Debug("Link closed: %v", err)
	}
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	if s.auth == nil {
		return "", nil
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("auth")
	}
	if token == "" {
		return "", authproviders.ErrInvalidToken
	}
	claims, err := s.auth.VerifyToken(r.Context(), token)
	if err != nil {
		return "", err
	}
	return claims.UID, nil
}
