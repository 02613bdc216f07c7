// Package ws provides WebSocket transport implementation for the relay.
// Frames travel as the payload of binary WebSocket messages; the frame stream
// is reassembled across message boundaries so the same codec rules apply as
// on raw TCP.
package ws

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/chanrelay/pkg/protocol"
)

// Conn adapts a gobwas/ws connection to chat.Conn interface.
type Conn struct {
	conn       net.Conn
	serverSide bool
	maxPayload int

	// reader streams data messages; inMessage is set while the current
	// message still has bytes for the frame reader.
	reader    *wsutil.Reader
	control   wsutil.FrameHandlerFunc
	inMessage bool

	// out is shared by data writes and the control replies sent while
	// reading; every WebSocket frame goes out in a single Write.
	wmu sync.Mutex
	out io.Writer

	closeOnce sync.Once
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func newConn(conn net.Conn, br *bufio.Reader, serverSide bool, maxPayload int) *Conn {
	var r io.Reader = conn
	if br != nil {
		r = br
	}
	c := &Conn{
		conn:       conn,
		serverSide: serverSide,
		maxPayload: maxPayload,
	}
	c.out = lockedWriter{mu: &c.wmu, w: conn}

	state := ws.StateClientSide
	if serverSide {
		state = ws.StateServerSide
	}
	c.control = wsutil.ControlFrameHandler(c.out, state)
	c.reader = &wsutil.Reader{
		Source:         r,
		State:          state,
		CheckUTF8:      true,
		OnIntermediate: c.control,
	}
	return c
}

// NewServerConn wraps a connection whose WebSocket handshake the server side
// has completed.
func NewServerConn(conn net.Conn, maxPayload int) *Conn {
	return newConn(conn, nil, true, maxPayload)
}

// Read implements chat.Conn.
// Reads exactly one frame, pulling as many WebSocket messages as needed.
// Message bodies are streamed, so a declared length above maxPayload is
// rejected before the rest of the message is read.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if err := c.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, &protocol.TransportError{Err: err}
	}
	return protocol.ReadPayload(messageReader{c}, c.maxPayload)
}

// Write implements chat.Conn.
// Each frame is sent as one binary WebSocket message.
func (c *Conn) Write(ctx context.Context, payload []byte) error {
	if err := c.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	return protocol.WriteFrame(messageWriter{c}, payload)
}

// Close implements chat.Conn. It sends a normal-closure close frame before
// closing the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = c.writeFrame(ws.NewCloseFrame(body))
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// nextMessage advances to the next data message, answering control frames
// on the way. A close frame from the peer is reported as io.EOF.
func (c *Conn) nextMessage() error {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := c.control(hdr, c.reader); err != nil {
				var closed wsutil.ClosedError
				if errors.As(err, &closed) {
					return io.EOF
				}
				return err
			}
			continue
		}
		if hdr.OpCode&(ws.OpBinary|ws.OpText) == 0 {
			if err := c.reader.Discard(); err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

type messageReader struct {
	c *Conn
}

func (r messageReader) Read(p []byte) (int, error) {
	for {
		if !r.c.inMessage {
			if err := r.c.nextMessage(); err != nil {
				return 0, err
			}
			r.c.inMessage = true
		}
		n, err := r.c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			// end of this message, not of the stream
			r.c.inMessage = false
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

type messageWriter struct {
	c *Conn
}

func (w messageWriter) Write(p []byte) (int, error) {
	if err := w.c.writeFrame(ws.NewBinaryFrame(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeFrame masks f when writing as a client and sends it in one Write.
func (c *Conn) writeFrame(f ws.Frame) error {
	if !c.serverSide {
		f = ws.MaskFrame(f)
	}
	b, err := ws.CompileFrame(f)
	if err != nil {
		return err
	}
	_, err = c.out.Write(b)
	return err
}

func deadline(ctx context.Context) time.Time {
	if ctx == nil {
		return time.Time{}
	}
	d, _ := ctx.Deadline()
	return d
}
