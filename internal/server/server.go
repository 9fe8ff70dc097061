package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/blackjackd/internal/auth"
	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/session"
)

// Server exposes the session manager over HTTP and WebSocket
type Server struct {
	logger      zerolog.Logger
	manager     *session.Manager
	validator   *Validator
	auth        auth.Validator
	upgrader    websocket.Upgrader
	httpServer  *http.Server
	connections map[*Connection]bool
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithCheckOrigin sets the WebSocket origin check. By default every origin
// is accepted.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// WithAuthValidator requires callers to authenticate. The owner of a new
// game is then taken from the token's identity.
func WithAuthValidator(v auth.Validator) Option {
	return func(s *Server) {
		s.auth = v
	}
}

// NewServer creates a server for manager
func NewServer(logger zerolog.Logger, manager *session.Manager, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		logger:    logger.With().Str("component", "server").Logger(),
		manager:   manager,
		validator: MustNewValidator(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on addr and serves until Shutdown is called
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown is called
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting server")
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes every WebSocket connection and stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// ConnectionCount returns the number of open WebSocket connections
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// act parses the wire action and runs it. Unknown action names fail as
// invalid transitions.
func (s *Server) act(ctx context.Context, gameID, name string) (*session.Update, error) {
	action, err := blackjack.ParseAction(name)
	if err != nil {
		var e *blackjack.Error
		if errors.As(err, &e) {
			e.GameID = gameID
		}
		return nil, err
	}
	return s.manager.Act(ctx, gameID, action)
}

// authenticate validates the request's token. It returns nil without
// error when authentication is disabled. Any failure, including an
// unreachable auth service, is NotAuthorized.
func (s *Server) authenticate(r *http.Request) (*auth.Identity, error) {
	if s.auth == nil {
		return nil, nil
	}
	identity, err := s.auth.Validate(r.Context(), auth.BearerToken(r))
	if err != nil {
		if errors.Is(err, auth.ErrUnavailable) {
			s.logger.Warn().Err(err).Msg("Auth service unavailable")
		}
		return nil, blackjack.Errorf(blackjack.KindNotAuthorized, "authenticate", "", "%v", err)
	}
	return identity, nil
}

// claimOwner resolves the owner of a new game. An authenticated identity
// wins; a body naming anyone else is rejected.
func claimOwner(identity *auth.Identity, claimed string) (string, error) {
	if identity == nil {
		return claimed, nil
	}
	if claimed != "" && claimed != identity.OwnerID {
		return "", blackjack.Errorf(blackjack.KindNotAuthorized, "create game", "", "token does not belong to owner %q", claimed)
	}
	return identity.OwnerID, nil
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	client := NewConnection(s.ctx, conn, s)
	client.identity = identity

	s.mu.Lock()
	s.connections[client] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info().Int("total", total).Msg("Client connected")

	client.Start()

	go func() {
		<-client.ctx.Done()
		s.mu.Lock()
		delete(s.connections, client)
		total := len(s.connections)
		s.mu.Unlock()
		s.logger.Info().Int("total", total).Msg("Client disconnected")
	}()
}
