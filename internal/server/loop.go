package server

import (
	"context"
	"encoding/hex"
	"errors"
	"io"

	"github.com/omochice/chanrelay/internal/chat"
	"github.com/omochice/chanrelay/pkg/protocol"
)

// event is one unit of work for the loop.
type event interface{}

// openEvent reports a newly established transport.
type openEvent struct {
	conn chat.Conn
}

// frameEvent carries one read result from a connection's reader.
type frameEvent struct {
	client  *chat.Client
	payload []byte
	err     error
}

// open hands an accepted connection to the loop.
func (s *Server) open(conn chat.Conn) {
	select {
	case s.events <- openEvent{conn: conn}:
	case <-s.quit:
		conn.Close()
	}
}

func (s *Server) run() {
	defer close(s.done)

	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case fn := <-s.queries:
			fn(s.hub)
		case <-s.quit:
			s.shutdown()
			return
		}
	}
}

func (s *Server) handle(ev event) {
	switch ev := ev.(type) {
	case openEvent:
		client := chat.NewClient(ev.conn)
		s.hub.Register(client)
		s.logger.Info().
			Str("client_id", client.ID).
			Str("remote_addr", ev.conn.RemoteAddr()).
			Int("clients", s.hub.ClientCount()).
			Msg("accepted connection")

		s.wg.Add(1)
		go s.readLoop(client)
	case frameEvent:
		if !s.hub.Has(ev.client) {
			// torn down while this read was in flight
			return
		}
		if ev.err != nil {
			s.readFailed(ev.client, ev.err)
			return
		}
		s.dispatch(ev.client, ev.payload)
	}
}

// readLoop feeds frames from one connection into the loop until a read fails.
func (s *Server) readLoop(client *chat.Client) {
	defer s.wg.Done()

	for {
		payload, err := client.Conn.Read(context.Background())
		select {
		case s.events <- frameEvent{client: client, payload: payload, err: err}:
		case <-s.quit:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) readFailed(client *chat.Client, err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.teardown(client, "peer closed connection")
	case errors.Is(err, protocol.ErrBadFormat):
		s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("rejected frame")
		s.teardown(client, "bad format")
	default:
		s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("read failed")
		s.teardown(client, "transport error")
	}
}

// dispatch decodes one payload and delivers it to the recipients the hub
// selects. A recipient whose write fails is torn down; delivery to the others
// continues.
func (s *Server) dispatch(client *chat.Client, payload []byte) {
	msg, err := protocol.Unmarshal(payload)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("client_id", client.ID).
			Str("payload", hex.EncodeToString(payload)).
			Msg("failed to decode message")
		s.teardown(client, "bad format")
		return
	}

	logEvent := s.logger.Info().
		Str("client_id", client.ID).
		Str("command", msg.Command().String())
	switch m := msg.(type) {
	case protocol.Register:
		logEvent = logEvent.Str("name", m.Name)
	case protocol.Join:
		logEvent = logEvent.Str("channel", m.Channel)
	case protocol.Text:
		logEvent = logEvent.Str("channel", m.Channel)
	}
	logEvent.Msg("received message")

	recipients, err := s.hub.Route(client, msg)
	if err != nil {
		s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("failed to route message")
		s.teardown(client, "unroutable message")
		return
	}
	if len(recipients) == 0 {
		s.logger.Debug().Str("client_id", client.ID).Msg("no subscribers, message dropped")
		return
	}

	for _, r := range recipients {
		if !s.hub.Has(r) {
			continue
		}
		if err := s.send(r, payload); err != nil {
			s.logger.Warn().Err(err).Str("client_id", r.ID).Msg("failed to send message")
			s.teardown(r, "write failed")
		}
	}
}

func (s *Server) send(client *chat.Client, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	return client.Conn.Write(ctx, payload)
}

// teardown removes client from the table and closes its transport in the same
// loop step. Its reader goroutine ends on the next failed read.
func (s *Server) teardown(client *chat.Client, reason string) {
	if !s.hub.Unregister(client) {
		return
	}
	if err := client.Conn.Close(); err != nil {
		s.logger.Debug().Err(err).Str("client_id", client.ID).Msg("close failed")
	}
	s.logger.Info().
		Str("client_id", client.ID).
		Str("reason", reason).
		Int("clients", s.hub.ClientCount()).
		Msg("connection closed")
}

// shutdown stops the listeners, closes every connection and waits for the
// goroutines feeding the loop.
func (s *Server) shutdown() {
	if s.tcp != nil {
		s.tcp.Stop()
	}
	if s.ws != nil {
		s.ws.Stop()
	}
	for _, c := range s.hub.Clients() {
		s.teardown(c, "server stopped")
	}
	s.wg.Wait()

	// connections accepted but never picked up by the loop
	for {
		select {
		case ev := <-s.events:
			if o, ok := ev.(openEvent); ok {
				o.conn.Close()
			}
		default:
			s.logger.Info().Msg("server stopped")
			return
		}
	}
}
