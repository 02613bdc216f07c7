// Package server runs the relay: it accepts TCP and WebSocket connections and
// routes frames between them from a single event loop.
package server

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/chanrelay/internal/chat"
	"github.com/omochice/chanrelay/internal/config"
	"github.com/omochice/chanrelay/internal/transport/tcp"
	"github.com/omochice/chanrelay/internal/transport/ws"
)

// Server represents a relay server.
//
// All connection state lives in a chat.Hub owned by the event loop goroutine.
// Listener and reader goroutines only produce events into the loop; queries
// from other goroutines are executed inside the loop as well.
type Server struct {
	cfg    config.Server
	logger zerolog.Logger
	hub    *chat.Hub

	tcp *tcp.Server
	ws  *ws.Server

	events  chan event
	queries chan func(*chat.Hub)

	quit     chan struct{}
	ready    chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ClientInfo is a snapshot of one connection's routing state.
type ClientInfo struct {
	ID         string
	Name       string
	RemoteAddr string
	State      chat.State
	Channels   []string
}

// New creates a new Server instance
func New(cfg config.Server, logger zerolog.Logger) *Server {
	buf := cfg.EventBuffer
	if buf < 0 {
		buf = 0
	}
	return &Server{
		cfg:     cfg,
		logger:  logger.With().Str("component", "server").Logger(),
		hub:     chat.NewHub(),
		events:  make(chan event, buf),
		queries: make(chan func(*chat.Hub)),
		quit:    make(chan struct{}),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start binds the listeners and runs the event loop. It blocks until Stop is
// called and returns nil once every connection has been closed.
func (s *Server) Start() error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.tcp = tcp.New(s.cfg.Address, s.cfg.MaxFrameSize, s.open, s.logger)
	if err := s.tcp.Listen(); err != nil {
		return err
	}
	if s.cfg.WebSocketAddress != "" {
		s.ws = ws.New(s.cfg.WebSocketAddress, s.cfg.WebSocketPath, s.cfg.MaxFrameSize, s.open, s.logger)
		if err := s.ws.Listen(); err != nil {
			s.tcp.Stop()
			return err
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tcp.Serve()
	}()
	if s.ws != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ws.Serve()
		}()
	}

	close(s.ready)
	s.run()
	return nil
}

// Stop stops the server and waits until all connections are closed.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	select {
	case <-s.ready:
		<-s.done
	default:
	}
}

// Ready is closed once the listeners are bound and the loop is running.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the TCP listening address. Valid after Ready.
func (s *Server) Addr() string {
	if s.tcp != nil {
		return s.tcp.Addr()
	}
	return ""
}

// WSAddr returns the WebSocket listening address, empty when disabled.
func (s *Server) WSAddr() string {
	if s.ws != nil {
		return s.ws.Addr()
	}
	return ""
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	var n int
	s.query(func(h *chat.Hub) { n = h.ClientCount() })
	return n
}

// Channels returns channel names with their subscriber counts.
func (s *Server) Channels() map[string]int {
	var out map[string]int
	s.query(func(h *chat.Hub) { out = h.Channels() })
	return out
}

// Clients returns a snapshot of every connection in accept order.
func (s *Server) Clients() []ClientInfo {
	var out []ClientInfo
	s.query(func(h *chat.Hub) {
		for _, c := range h.Clients() {
			out = append(out, ClientInfo{
				ID:         c.ID,
				Name:       c.Name,
				RemoteAddr: c.Conn.RemoteAddr(),
				State:      c.State(),
				Channels:   c.Channels(),
			})
		}
	})
	return out
}

// query runs fn on the loop goroutine. It is a no-op when the loop is not
// running.
func (s *Server) query(fn func(*chat.Hub)) {
	select {
	case <-s.ready:
	default:
		return
	}

	finished := make(chan struct{})
	select {
	case s.queries <- func(h *chat.Hub) {
		defer close(finished)
		fn(h)
	}:
		<-finished
	case <-s.done:
	}
}
