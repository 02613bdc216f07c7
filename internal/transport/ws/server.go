package ws

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/omochice/chanrelay/internal/chat"
)

// DefaultPath is the request path accepted for upgrades when none is set.
const DefaultPath = "/ws"

const handshakeTimeout = 5 * time.Second

// Handler receives every upgraded connection.
type Handler func(conn chat.Conn)

// Server accepts TCP connections, performs the WebSocket upgrade and hands
// upgraded connections to a Handler.
type Server struct {
	address    string
	path       string
	maxPayload int
	listener   net.Listener
	handler    Handler
	logger     zerolog.Logger
	quit       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// New creates a WebSocket server accepting upgrades on path.
func New(address, path string, maxPayload int, handler Handler, logger zerolog.Logger) *Server {
	if path == "" {
		path = DefaultPath
	}
	return &Server{
		address:    address,
		path:       path,
		maxPayload: maxPayload,
		handler:    handler,
		logger:     logger.With().Str("transport", "websocket").Logger(),
		quit:       make(chan struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	s.listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Str("path", s.path).Msg("WebSocket server started")
	return nil
}

// Serve accepts connections until Stop is called. Each handshake runs in its
// own goroutine so a slow peer cannot hold up others.
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
			s.logger.Warn().Err(err).Msg("failed to accept WebSocket connection")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.upgrade(conn)
		}()
	}
}

// Stop closes the listener and waits for in-flight handshakes.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) upgrade(conn net.Conn) {
	upgrader := ws.Upgrader{
		OnRequest: func(uri []byte) error {
			if path := requestPath(uri); path != s.path {
				return ws.RejectConnectionError(ws.RejectionStatus(http.StatusNotFound))
			}
			return nil
		},
	}

	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if _, err := upgrader.Upgrade(conn); err != nil {
		s.logger.Warn().Err(err).Str("remote_addr", conn.RemoteAddr().String()).Msg("websocket upgrade failed")
		conn.Close()
		return
	}
	_ = conn.SetDeadline(time.Time{})

	select {
	case <-s.quit:
		conn.Close()
		return
	default:
	}
	s.handler(NewServerConn(conn, s.maxPayload))
}

// requestPath strips the query string from a request URI.
func requestPath(uri []byte) string {
	for i, b := range uri {
		if b == '?' {
			return string(uri[:i])
		}
	}
	return string(uri)
}
