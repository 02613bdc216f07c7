// Package tcp provides the raw TCP transport: frames are written back to back
// on the stream.
package tcp

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/omochice/chanrelay/pkg/protocol"
)

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn       net.Conn
	reader     *bufio.Reader
	maxPayload int
}

// NewConn wraps a net.Conn. maxPayload bounds accepted frames; values <= 0
// select protocol.DefaultMaxPayloadSize.
func NewConn(conn net.Conn, maxPayload int) *Conn {
	return &Conn{
		conn:       conn,
		reader:     bufio.NewReader(conn),
		maxPayload: maxPayload,
	}
}

// Read implements chat.Conn.
// Blocks until one whole frame has arrived. A deadline on ctx bounds the read.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if err := c.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, &protocol.TransportError{Err: err}
	}
	return protocol.ReadPayload(c.reader, c.maxPayload)
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, payload []byte) error {
	if err := c.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	return protocol.WriteFrame(c.conn, payload)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// deadline returns the ctx deadline or the zero time, which clears any
// deadline previously set on the connection.
func deadline(ctx context.Context) time.Time {
	if ctx == nil {
		return time.Time{}
	}
	d, _ := ctx.Deadline()
	return d
}
