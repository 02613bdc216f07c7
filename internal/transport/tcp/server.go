package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/chanrelay/internal/chat"
)

// Handler receives every accepted connection.
type Handler func(conn chat.Conn)

// Server accepts TCP connections and hands them to a Handler.
type Server struct {
	address    string
	maxPayload int
	listener   net.Listener
	handler    Handler
	logger     zerolog.Logger
	quit       chan struct{}
	stopOnce   sync.Once
}

// New creates a TCP server that passes accepted connections to handler.
func New(address string, maxPayload int, handler Handler, logger zerolog.Logger) *Server {
	return &Server{
		address:    address,
		maxPayload: maxPayload,
		handler:    handler,
		logger:     logger.With().Str("transport", "tcp").Logger(),
		quit:       make(chan struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("TCP server started")
	return nil
}

// Serve accepts connections until Stop is called. Listen must have succeeded.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("failed to accept TCP connection")
			continue
		}
		s.handler(NewConn(conn, s.maxPayload))
	}
}

// Start binds and serves; it returns once Stop has been called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.Serve()
	return nil
}

// Stop closes the listener, which ends Serve. Accepted connections are left
// to their handler.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
	})
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
