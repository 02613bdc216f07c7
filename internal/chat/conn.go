// Package chat provides the relay's routing core shared by all transports:
// the connection abstraction, the per-connection record and the channel
// subscription table.
package chat

import "context"

// Conn abstracts a framed, bidirectional connection for both TCP and WebSocket.
// This interface isolates transport details from routing logic.
type Conn interface {
	// Read reads exactly one frame and returns its payload.
	// Returns io.EOF when the peer closed the connection between frames,
	// *protocol.TransportError when it closed mid-frame.
	Read(ctx context.Context) ([]byte, error)

	// Write sends payload as a single frame.
	Write(ctx context.Context, payload []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
