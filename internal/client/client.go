// Package client implements the relay client: one connection to the server
// and one local input source multiplexed into a single dispatch loop.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/chanrelay/internal/chat"
	"github.com/omochice/chanrelay/internal/config"
	"github.com/omochice/chanrelay/internal/transport/tcp"
	"github.com/omochice/chanrelay/internal/transport/ws"
	"github.com/omochice/chanrelay/pkg/protocol"
)

// ErrNotConnected is returned when sending without an open connection.
var ErrNotConnected = errors.New("not connected to server")

// Client represents a relay client
type Client struct {
	cfg    config.Client
	out    io.Writer
	logger zerolog.Logger

	mu   sync.RWMutex
	conn chat.Conn
	// active is nil until the first join; "" is a joinable channel.
	active *string
}

// New creates a new Client instance. Server output and notices are written
// to out.
func New(cfg config.Client, out io.Writer, logger zerolog.Logger) *Client {
	transport := "tcp"
	if cfg.IsWebSocket() {
		transport = "websocket"
	}
	return &Client{
		cfg:    cfg,
		out:    out,
		logger: logger.With().Str("component", "client").Str("transport", transport).Logger(),
	}
}

// Connect establishes a connection to the server and registers the
// configured name.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	var conn chat.Conn
	if c.cfg.IsWebSocket() {
		wc, err := ws.Dial(dialCtx, c.cfg.Address, c.cfg.MaxFrameSize)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		conn = wc
	} else {
		var d net.Dialer
		nc, err := d.DialContext(dialCtx, "tcp", c.cfg.Address)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		conn = tcp.NewConn(nc, c.cfg.MaxFrameSize)
	}

	c.mu.Lock()
	c.conn = conn
	c.active = nil
	c.mu.Unlock()

	c.logger.Info().Str("addr", c.cfg.Address).Msg("connected")

	if err := c.Register(); err != nil {
		c.Disconnect()
		return err
	}
	return nil
}

// Disconnect closes the connection to the server. It is safe to call more
// than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
		c.logger.Info().Msg("disconnected")
	}
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// ActiveChannel returns the channel unqualified text is sent to. ok is false
// until the first join.
func (c *Client) ActiveChannel() (channel string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return "", false
	}
	return *c.active, true
}

// Register sends a register message with the configured name.
func (c *Client) Register() error {
	return c.send(protocol.NewRegister(c.cfg.Name))
}

// Join subscribes to channel and makes it the active channel.
func (c *Client) Join(channel string) error {
	if err := c.send(protocol.NewJoin(channel)); err != nil {
		return err
	}

	c.mu.Lock()
	c.active = &channel
	c.mu.Unlock()
	return nil
}

// Send sends text to the active channel. Without an active channel it
// returns a *protocol.ConstructionError and nothing is sent.
func (c *Client) Send(text string) error {
	c.mu.RLock()
	active := c.active
	c.mu.RUnlock()

	msg, err := protocol.NewText(text, active)
	if err != nil {
		return err
	}
	return c.send(msg)
}

func (c *Client) send(msg protocol.Message) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := protocol.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, payload); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// frameEvent is one read result from the server connection.
type frameEvent struct {
	payload []byte
	err     error
}

// lineEvent is one line of local input; eof marks the end of input.
type lineEvent struct {
	line string
	eof  bool
	err  error
}

// Run multiplexes the server connection and input until the user exits,
// input ends, the server closes the connection or ctx is cancelled. Each
// event is handled to completion before the next one is taken. Run closes
// the connection before returning.
//
// A clean end (exit, end of input, server close) returns nil.
func (c *Client) Run(ctx context.Context, input io.Reader) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	defer c.Disconnect()

	done := make(chan struct{})
	defer close(done)

	frames := make(chan frameEvent)
	lines := make(chan lineEvent)
	go c.readServer(conn, frames, done)
	go c.readInput(input, lines, done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-frames:
			stop, err := c.handleFrame(ev)
			if stop {
				return err
			}
		case ev := <-lines:
			stop, err := c.handleLine(ev)
			if stop {
				return err
			}
		}
	}
}

func (c *Client) readServer(conn chat.Conn, frames chan<- frameEvent, done <-chan struct{}) {
	for {
		payload, err := conn.Read(context.Background())
		select {
		case frames <- frameEvent{payload: payload, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) readInput(input io.Reader, lines chan<- lineEvent, done <-chan struct{}) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		select {
		case lines <- lineEvent{line: scanner.Text()}:
		case <-done:
			return
		}
	}
	select {
	case lines <- lineEvent{eof: true, err: scanner.Err()}:
	case <-done:
	}
}

// handleFrame displays one inbound frame. It reports whether the loop must
// stop.
func (c *Client) handleFrame(ev frameEvent) (bool, error) {
	if ev.err != nil {
		if errors.Is(ev.err, io.EOF) {
			fmt.Fprintln(c.out, "Server closed the connection")
			return true, nil
		}
		c.logger.Error().Err(ev.err).Msg("failed to read from server")
		return true, fmt.Errorf("failed to read from server: %w", ev.err)
	}

	msg, err := protocol.Unmarshal(ev.payload)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownCommand) {
			c.logger.Warn().Err(err).Msg("ignoring message with unknown command")
			return false, nil
		}
		c.logger.Error().Err(err).Msg("failed to decode message")
		return true, fmt.Errorf("failed to decode message: %w", err)
	}

	switch m := msg.(type) {
	case protocol.Text:
		fmt.Fprintf(c.out, "%s -> %s\n", m.Channel, m.Message)
	case protocol.Join:
		fmt.Fprintf(c.out, "Joined channel %s\n", m.Channel)
	case protocol.Register:
		fmt.Fprintf(c.out, "Registered as %s\n", m.Name)
	}
	return false, nil
}

// handleLine acts on one line of input. It reports whether the loop must
// stop.
func (c *Client) handleLine(ev lineEvent) (bool, error) {
	if ev.eof {
		if ev.err != nil {
			return true, fmt.Errorf("failed to read input: %w", ev.err)
		}
		return true, nil
	}

	in, err := ParseInput(ev.line)
	if err != nil {
		fmt.Fprintln(c.out, err)
		return false, nil
	}

	switch in.Action {
	case ActionExit:
		return true, nil
	case ActionJoin:
		err = c.Join(in.Arg)
	case ActionSend:
		err = c.Send(in.Arg)
		if errors.Is(err, protocol.ErrConstruction) {
			fmt.Fprintln(c.out, "No active channel, use /join <channel> first")
			return false, nil
		}
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to send")
		return true, err
	}
	return false, nil
}
