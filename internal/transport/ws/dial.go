package ws

import (
	"context"
	"fmt"

	"github.com/gobwas/ws"
)

// Dial opens a client-side WebSocket connection to url (ws://host:port/path).
func Dial(ctx context.Context, url string, maxPayload int) (*Conn, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}
	return newConn(conn, br, false, maxPayload), nil
}
